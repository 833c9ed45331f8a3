// Package middleware contains HTTP middleware functions.
//
// The pattern is:
//
//	func MyMiddleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // BEFORE the handler runs
//	        next.ServeHTTP(w, r)
//	        // AFTER the handler runs
//	    })
//	}
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/ngo-hub/internal/auth"
)

// responseWriter wraps http.ResponseWriter to capture the status code and
// the number of bytes written.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger returns an access-log middleware.
//
// Each line carries method, path, status, duration, bytes, the chi request
// ID and the application instance. The level follows the status: 5xx logs
// at Error, 4xx at Warn, everything else at Info. Static assets log at
// Debug so they do not drown out page and API traffic.
//
// It must run inside auth.Instance for the instance field to be filled.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			// The instance is set by a middleware further in, so capture it
			// from the request the handler actually sees.
			var instance string
			next.ServeHTTP(wrapped, r.WithContext(withInstanceSink(r.Context(), &instance)))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
			}
			if id := chimiddleware.GetReqID(r.Context()); id != "" {
				attrs = append(attrs, slog.String("requestID", id))
			}
			if instance != "" {
				attrs = append(attrs, slog.String("instance", instance))
			}
			logger.LogAttrs(r.Context(), levelFor(r, wrapped.statusCode), "request completed", attrs...)
		})
	}
}

func levelFor(r *http.Request, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case strings.HasPrefix(r.URL.Path, "/static/"):
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// RecordInstance copies the request's application instance into the sink
// Logger left in the context. Mount it right after auth.Instance.
func RecordInstance(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sink, ok := r.Context().Value(instanceSinkKey).(*string); ok {
			*sink, _ = auth.InstanceFromContext(r.Context())
		}
		next.ServeHTTP(w, r)
	})
}
