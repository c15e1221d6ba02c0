// Package mock 提供确定性的 mock 适配器，仅用于开发与测试。
// 必须通过 MockConfig.Enabled 显式开启；生产请求绝不回退到合成数据。
package mock

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/collectorflow/providers"
	"github.com/BaSui01/collectorflow/types"
)

// Provider 确定性 mock 适配器。
// 对同一 prompt 永远返回同一答案，便于端到端联调。
type Provider struct {
	cfg           providers.MockConfig
	collectorType string
}

// New 创建 mock 适配器。cfg.Enabled 为 false 时拒绝构造。
func New(cfg providers.MockConfig, collectorType string) (*Provider, error) {
	if !cfg.Enabled {
		return nil, types.NewError(types.ErrConfigurationMissing,
			"mock provider requested but not enabled by configuration")
	}
	return &Provider{cfg: cfg, collectorType: collectorType}, nil
}

func (p *Provider) Name() string { return "mock_" + p.collectorType }

// Collect 实现 providers.Adapter。
func (p *Provider) Collect(ctx context.Context, req *providers.AnswerRequest) (*providers.AnswerResponse, error) {
	if p.cfg.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, types.NewError(types.ErrTimeout, "mock latency wait cancelled").WithCause(ctx.Err())
		case <-time.After(p.cfg.Latency):
		}
	}

	answer := p.cfg.Answer
	if answer == "" {
		answer = fmt.Sprintf("mock answer for %q", req.Prompt)
	}
	resp := &providers.AnswerResponse{
		Answer:        answer,
		ModelUsed:     "mock",
		CollectorType: p.collectorType,
	}
	resp.SetMeta(providers.MetaProvider, p.Name())
	resp.SetMeta(providers.MetaMock, true)
	return resp, nil
}

// HealthCheck 实现 providers.Adapter。
func (p *Provider) HealthCheck(ctx context.Context) (*providers.HealthStatus, error) {
	return &providers.HealthStatus{Healthy: true}, nil
}

var _ providers.Adapter = (*Provider)(nil)
