package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	htMetrics "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
)

const unmatchedRoute = "unmatched"

// Metrics records request count, latency and response size per route.
func Metrics(reg prometheus.Registerer) func(http.Handler) http.Handler {
	metricsMw := middleware.New(
		middleware.Config{
			Recorder: htMetrics.NewRecorder(htMetrics.Config{Registry: reg}),
		})

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wi := &responseWriter{
				statusCode:     http.StatusOK,
				ResponseWriter: w,
			}
			reporter := &chiReporter{
				w: wi,
				r: r,
			}

			metricsMw.Measure("", reporter, func() {
				h.ServeHTTP(wi, r)
			})
		})
	}
}

// chiReporter labels requests with their route pattern. Measure asks for
// the path before the router has run, so the pattern is resolved with a
// separate Match against the router. Unrouted paths share one label.
type chiReporter struct {
	w *responseWriter
	r *http.Request
}

func (c *chiReporter) Method() string { return c.r.Method }

func (c *chiReporter) Context() context.Context { return c.r.Context() }

func (c *chiReporter) URLPath() string {
	rctx := chi.RouteContext(c.r.Context())
	if rctx == nil || rctx.Routes == nil {
		return c.r.URL.Path
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	tctx := chi.NewRouteContext()
	if rctx.Routes.Match(tctx, c.r.Method, c.r.URL.Path) {
		return tctx.RoutePattern()
	}
	return unmatchedRoute
}

func (c *chiReporter) StatusCode() int { return c.w.statusCode }

func (c *chiReporter) BytesWritten() int64 { return int64(c.w.bytesWritten) }
