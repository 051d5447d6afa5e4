package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"lol-tracker/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-ID"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	loggerKey
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// RequestLogger tags every request with an id, attaches a request-scoped
// logger to the context and records the request in the HTTP metrics.
func RequestLogger(logger log.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, requestID)

			route := routeTemplate(r)
			entry := logger.WithFields(log.Fields{
				"requestId": requestID,
				"method":    r.Method,
				"route":     route,
			})

			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			ctx = context.WithValue(ctx, loggerKey, entry)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			elapsed := time.Since(start)
			metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

			fields := entry.WithFields(log.Fields{
				"status":     rec.status,
				"bytes":      rec.bytes,
				"durationMs": elapsed.Milliseconds(),
				"ip":         GetClientIP(r),
			})
			switch {
			case rec.status >= 500:
				fields.Warn("Request failed")
			default:
				fields.Debug("Request served")
			}
		})
	}
}

// RequestID returns the id RequestLogger assigned, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Logger returns the request-scoped logger, falling back to fallback.
func Logger(ctx context.Context, fallback log.FieldLogger) log.FieldLogger {
	if l, ok := ctx.Value(loggerKey).(log.FieldLogger); ok {
		return l
	}
	return fallback
}

// routeTemplate keeps metric labels bounded by using the matched mux
// template instead of the raw path.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
