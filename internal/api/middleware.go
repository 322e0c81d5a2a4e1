package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/loggw/loggw/internal/logging"
	"github.com/loggw/loggw/internal/metrics"
	"github.com/rs/zerolog/log"
)

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestLogging tags every request with an ID, logs its completion,
// and feeds the request counters.
func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, requestID := logging.WithRequestID(r.Context(), r.Header.Get("X-Request-ID"))
		w.Header().Set("X-Request-ID", requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r.WithContext(ctx))

		route := normalizeRoute(r.URL.Path)
		metrics.RecordRequest(route, recorder.status)
		log.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// normalizeRoute collapses file names so the metric label set stays
// bounded.
func normalizeRoute(path string) string {
	switch {
	case path == "/healthz" || strings.HasPrefix(path, "/logs/"):
		return path
	case strings.HasPrefix(path, "/files/z2m/external_converters"):
		if strings.TrimSuffix(path, "/") == "/files/z2m/external_converters" {
			return "/files/z2m/external_converters"
		}
		return "/files/z2m/external_converters/:name"
	case strings.HasPrefix(path, "/files/z2m"):
		if strings.TrimSuffix(path, "/") == "/files/z2m" {
			return "/files/z2m"
		}
		return "/files/z2m/:name"
	default:
		return "other"
	}
}
