package providers

import (
	"net/http"
	"strings"

	"github.com/BaSui01/collectorflow/types"
)

// MapHTTPError 将 HTTP 状态码映射为带有合适重试标记的 types.Error。
// 这是所有适配器使用的通用错误映射函数。
func MapHTTPError(status int, msg string, provider string) *types.Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewError(types.ErrAuthentication, msg).
			WithHTTPStatus(status).
			WithProvider(provider)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return types.NewError(types.ErrInvalidInput, msg).
			WithHTTPStatus(status).
			WithProvider(provider)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return types.NewError(types.ErrTimeout, msg).
			WithHTTPStatus(status).
			WithProvider(provider)
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable:
		return types.NewError(types.ErrTransport, msg).
			WithHTTPStatus(status).
			WithProvider(provider)
	default:
		if status >= 500 {
			return types.NewError(types.ErrTransport, msg).
				WithHTTPStatus(status).
				WithProvider(provider)
		}
		return types.NewError(types.ErrUnknown, msg).
			WithHTTPStatus(status).
			WithProvider(provider)
	}
}

// ClassifyTransportError 将底层 HTTP 客户端错误分类为 TIMEOUT 或 TRANSPORT。
func ClassifyTransportError(err error, provider string) *types.Error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "context deadline exceeded") ||
		strings.Contains(lower, "timeout") {
		return types.NewError(types.ErrTimeout, msg).
			WithProvider(provider).
			WithCause(err)
	}
	return types.NewError(types.ErrTransport, msg).
		WithProvider(provider).
		WithCause(err)
}
