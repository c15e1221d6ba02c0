package meta

import (
	"context"
	"net/http"
	"time"

	"github.com/BaSui01/collectorflow/providers"
	"go.uber.org/zap"
)

// scoreTimeout 单次打分请求的预算
const scoreTimeout = 30 * time.Second

// HTTPScorer 把打分请求转发给外部打分服务。
// 请求在独立 goroutine 里发出，任何失败只打日志。
type HTTPScorer struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPScorer 创建 HTTP 打分器。endpoint 为打分服务的完整 URL。
func NewHTTPScorer(endpoint, apiKey string, logger *zap.Logger) *HTTPScorer {
	return &HTTPScorer{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: scoreTimeout},
		logger:   logger,
	}
}

// ScoreBrandAsync implements Scorer.
// 打分服务按 (brand_id, customer_id) 定位品牌，parallel 固定为 false：
// 上游依赖打分结果的顺序写入。与调用方的生命周期解耦。
func (s *HTTPScorer) ScoreBrandAsync(_ context.Context, resultID, brandID, customerID string) {
	if s.endpoint == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), scoreTimeout)
		defer cancel()

		headers := map[string]string{}
		if s.apiKey != "" {
			headers["Authorization"] = "Bearer " + s.apiKey
		}
		status, body, err := providers.DoJSON(ctx, s.client, http.MethodPost, s.endpoint, headers,
			map[string]any{
				"result_id":   resultID,
				"brand_id":    brandID,
				"customer_id": customerID,
				"parallel":    false,
			})
		if err != nil {
			s.logger.Warn("scoring request failed",
				zap.String("result_id", resultID),
				zap.Error(err),
			)
			return
		}
		if status >= 400 {
			s.logger.Warn("scoring service rejected result",
				zap.String("result_id", resultID),
				zap.Int("status", status),
				zap.String("message", providers.ReadErrMsg(body)),
			)
			return
		}
		s.logger.Debug("scoring dispatched", zap.String("result_id", resultID))
	}()
}

var _ Scorer = (*HTTPScorer)(nil)
