package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPRecorder はリクエストメトリクスの記録先。metrics.Collectorが実装する。
type HTTPRecorder interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
}

// NewMetricsMiddleware はリクエスト数と処理時間を記録するミドルウェアを返す。
// ラベルのカーディナリティを抑えるため、パスではなくchiのルートパターンを使う。
func NewMetricsMiddleware(recorder HTTPRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			recorder.RecordHTTPRequest(r.Method, route, rec.statusCode, time.Since(start))
		})
	}
}
