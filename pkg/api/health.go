package api

import (
	"net/http"
	"time"
)

var startTime = time.Now()

// healthStatus is the health endpoint payload
type healthStatus struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	ActiveJobs    int     `json:"active_jobs"`
	PendingJobs   int     `json:"pending_jobs"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthStatus{
		Status:        "ok",
		UptimeSeconds: time.Since(startTime).Seconds(),
		ActiveJobs:    s.jobs.ActiveJobCount(),
		PendingJobs:   s.jobs.PendingJobCount(),
	})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
