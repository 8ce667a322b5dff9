package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iho/txengine/internal/infrastructure/metrics"
)

// Metrics returns middleware that records HTTP request metrics.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.HTTPInFlight.Inc()
			defer m.HTTPInFlight.Dec()

			// Wrap response writer to capture status code
			wrapped := &metricsRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			path := normalizePath(r.URL.Path)

			m.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			m.HTTPDuration.WithLabelValues(r.Method, path).Observe(duration)
		})
	}
}

type metricsRecorder struct {
	http.ResponseWriter

	statusCode int
}

func (r *metricsRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Path prefixes whose next segment is an identifier.
var idRoutes = []struct {
	prefix string
	param  string
}{
	{"/api/v1/accounts/", ":client"},
	{"/api/v1/batches/", ":id"},
}

// normalizePath normalizes URL paths to avoid high cardinality.
//
//	/api/v1/accounts/17      -> /api/v1/accounts/:client
//	/api/v1/batches/01HX.../ -> /api/v1/batches/:id/
func normalizePath(path string) string {
	for _, route := range idRoutes {
		rest, ok := strings.CutPrefix(path, route.prefix)
		if !ok || rest == "" || rest[0] == '/' {
			continue
		}

		suffix := ""
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			suffix = rest[i:]
		}
		return route.prefix + route.param + suffix
	}

	return path
}
