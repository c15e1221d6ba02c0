package collector

import (
	"context"

	"github.com/BaSui01/collectorflow/collector/circuitbreaker"
	"github.com/BaSui01/collectorflow/collector/retry"
	"github.com/BaSui01/collectorflow/internal/metrics"
	"github.com/BaSui01/collectorflow/providers"
	"go.uber.org/zap"
)

// Resilience 把重试与熔断组合成整条 provider 链的韧性包装。
// 重试作用在"一次完整的链路执行"上：每个重试轮次从头走一遍
// provider 链，链内的回退由调用方负责，两者互不交错。
// 熔断器按请求的规范化 collector 集合分键：一组 collector 的
// 持续失败不会熔断其它组合的请求。
type Resilience struct {
	policy   *retry.RetryPolicy
	breakers *circuitbreaker.KeyedBreakers
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewResilience 创建韧性包装。metrics 可为 nil。
func NewResilience(policy *retry.RetryPolicy, breakers *circuitbreaker.KeyedBreakers, mc *metrics.Collector, logger *zap.Logger) *Resilience {
	if policy == nil {
		policy = retry.DefaultRetryPolicy()
	}
	return &Resilience{
		policy:   policy,
		breakers: breakers,
		metrics:  mc,
		logger:   logger,
	}
}

// Breakers 返回底层的按键熔断器集合（监控用）。
func (r *Resilience) Breakers() *circuitbreaker.KeyedBreakers {
	return r.breakers
}

// Execute 在重试与熔断保护下执行 fn。
//
// fn 是一次完整的链路执行，收到当前轮次号（从 1 起）。每个轮次
// 先过熔断器 Allow：拒绝返回 CIRCUIT_OPEN（不可重试，立即终止
// 重试循环且不计入失败）；轮次失败回写 RecordFailure，成功回写
// RecordSuccess。状态转换指标由熔断器的 OnStateChange 回调记录。
func (r *Resilience) Execute(
	ctx context.Context,
	key string,
	maxRetries int,
	fn func(ctx context.Context, pass int) (*providers.AnswerResponse, error),
) (*providers.AnswerResponse, error) {
	breaker := r.breakers.Get(key)

	policy := &retry.RetryPolicy{
		MaxRetries: r.policy.MaxRetries,
		BaseDelay:  r.policy.BaseDelay,
		MaxDelay:   r.policy.MaxDelay,
	}
	if maxRetries > 0 {
		policy.MaxRetries = maxRetries
	}

	pass := 0
	retryer := retry.NewBackoffRetryer(policy, r.logger)
	return retry.DoWithResultTyped(retryer, ctx, func() (*providers.AnswerResponse, error) {
		pass++
		if err := breaker.Allow(); err != nil {
			r.metrics.RecordBreakerRejection(key)
			return nil, err
		}
		resp, err := fn(ctx, pass)
		if err != nil {
			breaker.RecordFailure()
			return nil, err
		}
		breaker.RecordSuccess()
		return resp, nil
	})
}
