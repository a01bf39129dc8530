package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Logging returns middleware that logs all HTTP requests. Server errors are
// logged at warn level and health probes at debug level.
func Logging(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newStatusRecorder(w)

			next.ServeHTTP(rw, r)

			entry := logger.WithFields(logrus.Fields{
				"method":        r.Method,
				"path":          r.URL.Path,
				"route":         route(r),
				"query":         r.URL.RawQuery,
				"status":        rw.statusCode,
				"duration_ms":   time.Since(start).Milliseconds(),
				"bytes_written": rw.bytesWritten,
				"remote_addr":   r.RemoteAddr,
				"user_agent":    r.UserAgent(),
			})

			switch {
			case rw.statusCode >= http.StatusInternalServerError:
				entry.Warn("HTTP request completed")
			case r.URL.Path == "/health":
				entry.Debug("HTTP request completed")
			default:
				entry.Info("HTTP request completed")
			}
		})
	}
}
