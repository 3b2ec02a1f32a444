package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// routes are the paths served by the API. Anything else is reported as
// "other" so scanners cannot inflate label cardinality.
var routes = map[string]bool{
	"/events/recommended": true,
	"/events/search":      true,
	"/events/feed":        true,
	"/health":             true,
	"/ready":              true,
	"/metrics":            true,
}

// unmatchedRoute labels requests for unknown paths.
const unmatchedRoute = "other"

// normalizePath maps a request path to a bounded route label.
func normalizePath(path string) string {
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	if routes[path] {
		return path
	}
	return unmatchedRoute
}

// excludedFromMetrics are probe and scrape endpoints.
func excludedFromMetrics(path string) bool {
	return path == "/health" || path == "/ready" || path == "/metrics"
}

// HTTPMetrics is a middleware that records HTTP request metrics: duration,
// response size, request counts and in-flight requests.
// Health, readiness and scrape endpoints are excluded. A nil metrics
// disables the middleware.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if excludedFromMetrics(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			metrics.httpInFlight.Inc()
			defer metrics.httpInFlight.Dec()

			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(rw.statusCode),
				time.Since(start).Seconds(),
				rw.size,
			)
		})
	}
}
