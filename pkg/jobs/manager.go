package jobs

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quarryhq/quarry/pkg/events"
	"github.com/quarryhq/quarry/pkg/log"
	"github.com/quarryhq/quarry/pkg/metrics"
	"github.com/quarryhq/quarry/pkg/storage"
	"github.com/quarryhq/quarry/pkg/types"
)

// ProgressFunc reports job progress in the range 0-100
type ProgressFunc func(progress int)

// Body is the unit of work executed by a worker. The context is cancelled
// when the job is cancelled or the engine shuts down; bodies observe it
// between subprocess steps. The returned map becomes the job result.
type Body func(ctx context.Context, progress ProgressFunc) (map[string]any, error)

// ErrCancelled is returned by Checkpoint when the job has been cancelled
var ErrCancelled = errors.New("job cancelled during execution")

type jobIDKey struct{}

// JobIDFromContext returns the id of the job owning this context; empty
// outside a worker.
func JobIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(jobIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Checkpoint returns ErrCancelled once the job context has been cancelled.
// Bodies call it before each blocking step.
func Checkpoint(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ErrCancelled
	default:
		return nil
	}
}

// SubmitOptions carries submission metadata
type SubmitOptions struct {
	Submitter string
	IsAdmin   bool
	RepoAlias string
}

// CancelResult reports the outcome of a cancellation request
type CancelResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Manager runs background jobs on a fixed worker pool with admin-priority
// dispatch, owner-scoped visibility and durable state transitions.
type Manager struct {
	mu      sync.Mutex
	jobs    map[string]*types.Job
	cancels map[string]context.CancelFunc
	store   storage.JobStore
	queue   *priorityQueue
	seq     uint64

	workers     int
	wg          sync.WaitGroup
	baseCtx     context.Context
	baseCancel  context.CancelFunc
	maintenance bool

	broker *events.Broker
	logger zerolog.Logger
}

// NewManager creates a job manager over the given store and starts its
// workers. Persisted jobs are loaded immediately; orphaned records have
// already been rewritten to failed by the store.
func NewManager(store storage.JobStore, workers int, broker *events.Broker) (*Manager, error) {
	if workers <= 0 {
		workers = 4
	}

	loaded, orphans, err := store.Load()
	if err != nil {
		return nil, err
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	m := &Manager{
		jobs:       loaded,
		cancels:    make(map[string]context.CancelFunc),
		store:      store,
		queue:      newPriorityQueue(),
		workers:    workers,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		broker:     broker,
		logger:     log.WithComponent("jobs"),
	}

	if orphans > 0 {
		m.logger.Info().Int("count", orphans).Msg("Rewrote orphaned jobs to failed on startup")
	}
	if len(loaded) > 0 {
		m.logger.Info().Int("count", len(loaded)).Msg("Loaded jobs from storage")
	}

	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}

	return m, nil
}

// SetMaintenanceMode toggles rejection of new submissions
func (m *Manager) SetMaintenanceMode(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maintenance = enabled
}

// Submit validates inputs, records a pending job and dispatches the body
// to a worker. It never blocks on execution.
func (m *Manager) Submit(operationType string, body Body, opts SubmitOptions) (string, error) {
	if operationType == "" {
		return "", &types.ValidationError{Msg: "operation type must not be empty"}
	}
	if opts.Submitter == "" {
		return "", &types.ValidationError{Msg: "submitter username must not be empty"}
	}

	if opts.RepoAlias == "" {
		m.logger.Warn().
			Str("operation", operationType).
			Str("username", opts.Submitter).
			Msg("Job submitted without repo_alias")
	} else if isUnknownAlias(opts.RepoAlias) {
		m.logger.Warn().
			Str("operation", operationType).
			Str("username", opts.Submitter).
			Msg("Job submitted with repo_alias 'unknown', repository context may be missing")
	}

	job := &types.Job{
		JobID:         uuid.New().String(),
		OperationType: operationType,
		Status:        types.JobStatusPending,
		CreatedAt:     time.Now().UTC(),
		Username:      opts.Submitter,
		IsAdmin:       opts.IsAdmin,
		RepoAlias:     opts.RepoAlias,
	}

	m.mu.Lock()
	if m.maintenance {
		m.mu.Unlock()
		return "", &types.MaintenanceError{}
	}
	m.jobs[job.JobID] = job
	m.seq++
	seq := m.seq
	m.persistLocked()
	m.mu.Unlock()

	m.queue.push(&queueItem{jobID: job.JobID, body: body, admin: opts.IsAdmin, seq: seq})

	metrics.JobsSubmitted.WithLabelValues(operationType).Inc()
	metrics.JobsPending.Inc()
	m.publish(events.EventJobSubmitted, job.JobID, operationType)

	m.logger.Info().
		Str("job_id", job.JobID).
		Str("operation", operationType).
		Str("username", opts.Submitter).
		Bool("is_admin", opts.IsAdmin).
		Msg("Background job submitted")

	return job.JobID, nil
}

func isUnknownAlias(alias string) bool {
	return strings.EqualFold(alias, "unknown")
}

// Status returns the job record visible to requester, or a NotFoundError
// when the job does not exist or belongs to another user.
func (m *Manager) Status(jobID, requester string) (*types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || job.Username != requester {
		return nil, &types.NotFoundError{Resource: "job", Name: jobID}
	}
	return job.Clone(), nil
}

// List returns requester's jobs newest-first with optional status filter
// and pagination.
func (m *Manager) List(requester string, statusFilter types.JobStatus, limit, offset int) *types.JobList {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*types.Job
	for _, job := range m.jobs {
		if job.Username != requester {
			continue
		}
		if statusFilter != "" && job.Status != statusFilter {
			continue
		}
		matched = append(matched, job)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := make([]*types.Job, 0, end-offset)
	for _, job := range matched[offset:end] {
		page = append(page, job.Clone())
	}

	return &types.JobList{Jobs: page, Total: total, Limit: limit, Offset: offset}
}

// Cancel requests cancellation of a pending or running job owned by the
// requester. Pending jobs transition immediately; running jobs observe
// the flag at their next checkpoint.
func (m *Manager) Cancel(jobID, requester string) CancelResult {
	m.mu.Lock()

	job, ok := m.jobs[jobID]
	if !ok || job.Username != requester {
		m.mu.Unlock()
		return CancelResult{Success: false, Message: "Job not found or not authorized"}
	}

	if job.Status != types.JobStatusPending && job.Status != types.JobStatusRunning {
		status := job.Status
		m.mu.Unlock()
		return CancelResult{Success: false, Message: "Cannot cancel job in " + string(status) + " status"}
	}

	job.Cancelled = true
	if job.Status == types.JobStatusPending {
		now := time.Now().UTC()
		job.Status = types.JobStatusCancelled
		job.CompletedAt = &now
	}
	cancel := m.cancels[jobID]
	m.persistLocked()
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	m.publish(events.EventJobCancelled, jobID, job.OperationType)
	m.logger.Info().Str("job_id", jobID).Str("username", requester).Msg("Job cancelled")
	return CancelResult{Success: true, Message: "Job cancelled successfully"}
}

// Prune removes terminal jobs older than maxAge and persists once.
// Returns the number of removed jobs.
func (m *Manager) Prune(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, job := range m.jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		m.persistLocked()
		m.logger.Info().Int("count", removed).Msg("Pruned old background jobs")
	}
	return removed
}

// ActiveJobCount returns the number of running jobs
func (m *Manager) ActiveJobCount() int {
	return m.countByStatus(types.JobStatusRunning)
}

// PendingJobCount returns the number of jobs waiting for a worker
func (m *Manager) PendingJobCount() int {
	return m.countByStatus(types.JobStatusPending)
}

// FailedJobCount returns the number of failed jobs
func (m *Manager) FailedJobCount() int {
	return m.countByStatus(types.JobStatusFailed)
}

func (m *Manager) countByStatus(status types.JobStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, job := range m.jobs {
		if job.Status == status {
			count++
		}
	}
	return count
}

// StatsWindow returns completed/failed counts for jobs that finished
// within the window.
func (m *Manager) StatsWindow(window time.Duration) types.JobStats {
	cutoff := time.Now().UTC().Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	var stats types.JobStats
	for _, job := range m.jobs {
		if job.CompletedAt == nil || job.CompletedAt.Before(cutoff) {
			continue
		}
		switch job.Status {
		case types.JobStatusCompleted:
			stats.Completed++
		case types.JobStatusFailed:
			stats.Failed++
		}
	}
	return stats
}

// RecentJobs returns completed or failed jobs finished within the window,
// newest completion first, capped at limit.
func (m *Manager) RecentJobs(window time.Duration, limit int) []*types.Job {
	if limit <= 0 {
		limit = 20
	}
	cutoff := time.Now().UTC().Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	var recent []*types.Job
	for _, job := range m.jobs {
		if job.Status != types.JobStatusCompleted && job.Status != types.JobStatusFailed {
			continue
		}
		if job.CompletedAt == nil || job.CompletedAt.Before(cutoff) {
			continue
		}
		recent = append(recent, job.Clone())
	}

	sort.Slice(recent, func(i, j int) bool {
		return recent[i].CompletedAt.After(*recent[j].CompletedAt)
	})

	if len(recent) > limit {
		recent = recent[:limit]
	}
	return recent
}

// JobsByOperation returns jobs whose operation type is in operationTypes,
// regardless of owner. Used by deletion flows to find in-flight work on a
// repository.
func (m *Manager) JobsByOperation(operationTypes ...string) []*types.Job {
	wanted := make(map[string]bool, len(operationTypes))
	for _, op := range operationTypes {
		wanted[op] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*types.Job
	for _, job := range m.jobs {
		if wanted[job.OperationType] {
			matched = append(matched, job.Clone())
		}
	}
	return matched
}

// RecordResolution updates a running job's self-healing fields: the
// failure explanation, the number of remediation attempts, and the
// actions taken. No-op on unknown or terminal jobs.
func (m *Manager) RecordResolution(jobID, failureReason string, attempts int, actions []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}
	job.FailureReason = failureReason
	job.ResolutionAttempts += attempts
	job.ClaudeActions = append(job.ClaudeActions, actions...)
	m.persistLocked()
}

// SetLanguageResolutionStatus records per-project remediation tracking
// on a running job.
func (m *Manager) SetLanguageResolutionStatus(jobID, project string, status map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}
	if job.LanguageResolutionStatus == nil {
		job.LanguageResolutionStatus = make(map[string]map[string]any)
	}
	job.LanguageResolutionStatus[project] = status
	m.persistLocked()
}

// Shutdown cancels all running jobs, persists final state and waits for
// workers up to the given timeout.
func (m *Manager) Shutdown(timeout time.Duration) {
	m.mu.Lock()
	now := time.Now().UTC()
	for id, job := range m.jobs {
		if job.Status == types.JobStatusRunning {
			job.Cancelled = true
			job.Status = types.JobStatusCancelled
			job.CompletedAt = &now
			m.logger.Info().Str("job_id", id).Msg("Job cancelled during shutdown")
		}
	}
	m.persistLocked()
	m.mu.Unlock()

	m.baseCancel()
	m.queue.close()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		m.logger.Warn().Dur("timeout", timeout).Msg("Workers did not complete before shutdown timeout")
	}

	m.logger.Info().Msg("Background job manager shutdown complete")
}

// worker drains the queue until it is closed
func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		item, ok := m.queue.pop()
		if !ok {
			return
		}
		m.execute(item)
	}
}

func (m *Manager) execute(item *queueItem) {
	m.mu.Lock()
	job, ok := m.jobs[item.jobID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if job.Cancelled {
		if !job.Status.Terminal() {
			now := time.Now().UTC()
			job.Status = types.JobStatusCancelled
			job.CompletedAt = &now
			m.persistLocked()
		}
		m.mu.Unlock()
		metrics.JobsPending.Dec()
		return
	}

	now := time.Now().UTC()
	job.Status = types.JobStatusRunning
	job.StartedAt = &now
	job.Progress = 10
	m.persistLocked()

	jobCtx, cancel := context.WithCancel(context.WithValue(m.baseCtx, jobIDKey{}, item.jobID))
	m.cancels[item.jobID] = cancel
	operation := job.OperationType
	m.mu.Unlock()

	metrics.JobsPending.Dec()
	metrics.JobsActive.Inc()
	timer := metrics.NewTimer()

	m.logger.Info().Str("job_id", item.jobID).Str("operation", operation).Msg("Starting background job")

	progress := func(p int) {
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if j, ok := m.jobs[item.jobID]; ok && !j.Cancelled && p > j.Progress {
			j.Progress = p
			m.persistLocked()
		}
	}

	result, err := item.body(jobCtx, progress)

	cancel()
	timer.ObserveDurationVec(metrics.JobDuration, operation)
	metrics.JobsActive.Dec()

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancels, item.jobID)

	job, ok = m.jobs[item.jobID]
	if !ok {
		return
	}

	end := time.Now().UTC()
	job.CompletedAt = &end

	switch {
	case job.Cancelled || errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled):
		job.Status = types.JobStatusCancelled
		if err != nil {
			job.Error = err.Error()
		}
		job.Progress = 0
		metrics.JobsCompleted.WithLabelValues(operation, string(types.JobStatusCancelled)).Inc()
		m.logger.Info().Str("job_id", item.jobID).Msg("Background job cancelled")
	case err != nil:
		job.Status = types.JobStatusFailed
		job.Error = err.Error()
		job.Progress = 0
		metrics.JobsCompleted.WithLabelValues(operation, string(types.JobStatusFailed)).Inc()
		m.publish(events.EventJobFailed, item.jobID, operation)
		m.logger.Error().Str("job_id", item.jobID).Str("error", err.Error()).Msg("Background job failed")
	default:
		job.Status = types.JobStatusCompleted
		job.Result = result
		job.Progress = 100
		metrics.JobsCompleted.WithLabelValues(operation, string(types.JobStatusCompleted)).Inc()
		m.publish(events.EventJobCompleted, item.jobID, operation)
		m.logger.Info().Str("job_id", item.jobID).Msg("Background job completed successfully")
	}

	m.persistLocked()
}

// persistLocked writes the job table through the store. Must be called
// with the manager lock held. Persistence failures are logged, not
// raised: jobs keep working in memory.
func (m *Manager) persistLocked() {
	if err := m.store.SaveAll(m.jobs); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist jobs")
	}
}

func (m *Manager) publish(eventType events.EventType, jobID, operation string) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(&events.Event{
		ID:   jobID,
		Type: eventType,
		Metadata: map[string]string{
			"operation": operation,
		},
	})
}
