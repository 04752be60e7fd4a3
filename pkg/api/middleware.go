package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/quarryhq/quarry/pkg/log"
	"github.com/quarryhq/quarry/pkg/metrics"
)

// Headers set by the authentication layer in front of this adaptor
const (
	headerUser          = "X-Quarry-User"
	headerAdmin         = "X-Quarry-Admin"
	headerCorrelationID = "X-Correlation-ID"
)

// correlationMiddleware attaches a correlation id to the request context,
// generating one when the caller did not send any.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerCorrelationID)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(headerCorrelationID, id)
		next.ServeHTTP(w, r.WithContext(log.WithCorrelationID(r.Context(), id)))
	})
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware counts and times every API request
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		timer.ObserveDurationVec(metrics.APIRequestDuration, r.Method)
		metrics.APIRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(recorder.status)).Inc()
	})
}

// requestUser returns the authenticated username supplied by the fronting
// auth layer; empty means the request is unauthenticated.
func requestUser(r *http.Request) string {
	return r.Header.Get(headerUser)
}

// requestIsAdmin reports whether the fronting auth layer flagged the user
// as an administrator.
func requestIsAdmin(r *http.Request) bool {
	return r.Header.Get(headerAdmin) == "true"
}
