package metrics

import (
	"net/http"
	"strconv"
)

// statusRecorder remembers the status written by an admin handler.
// Handlers that never call WriteHeader answered 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware counts the responses of an admin route by method and status, so
// cache reads and cache invalidations show up separately.
func Middleware(next http.Handler, route string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		AdminResponses.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
	})
}
