package resources

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quarryhq/quarry/pkg/log"
	"github.com/quarryhq/quarry/pkg/metrics"
)

// taskCancelGrace is how long Close waits for each tracked task to stop
const taskCancelGrace = 2 * time.Second

type trackedTask struct {
	cancel context.CancelFunc
	done   <-chan struct{}
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// Scope tracks resources acquired during one operation and disposes of
// them in reverse dependency order on Close: background tasks first
// (they may hold other resources), then file handles, then named
// connections, then temporary paths, then an optional memory check.
//
// Every disposal step is independent; a failure in one step is logged
// and the next step still runs.
type Scope struct {
	mu        sync.Mutex
	files     []namedCloser
	conns     map[string]io.Closer
	connOrder []string
	tempPaths []string
	tasks     map[string]trackedTask
	taskOrder []string
	monitor   *MemoryMonitor
	closed    bool
	logger    zerolog.Logger
}

// Option configures a Scope
type Option func(*Scope)

// WithMemoryMonitoring captures a memory baseline at scope entry and
// checks for growth beyond thresholdMB at scope exit.
func WithMemoryMonitoring(thresholdMB float64) Option {
	return func(s *Scope) {
		s.monitor = NewMemoryMonitor(thresholdMB)
	}
}

// NewScope opens a resource scope
func NewScope(opts ...Option) *Scope {
	s := &Scope{
		conns:  make(map[string]io.Closer),
		tasks:  make(map[string]trackedTask),
		logger: log.WithComponent("resources"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TrackFile registers a file handle for closing on scope exit
func (s *Scope) TrackFile(name string, closer io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, namedCloser{name: name, closer: closer})
	s.logger.Debug().Str("file", name).Msg("Tracking file handle")
}

// TrackConnection registers a named connection for closing on scope exit
func (s *Scope) TrackConnection(name string, closer io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.conns[name]; !exists {
		s.connOrder = append(s.connOrder, name)
	}
	s.conns[name] = closer
	s.logger.Debug().Str("connection", name).Msg("Tracking connection")
}

// TrackTempPath registers a temporary file or directory for removal on
// scope exit. Directories are removed recursively.
func (s *Scope) TrackTempPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tempPaths = append(s.tempPaths, path)
	s.logger.Debug().Str("path", path).Msg("Tracking temp path")
}

// UntrackTempPath releases a path from cleanup. Used when a tracked
// destination becomes the operation's committed result.
func (s *Scope) UntrackTempPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.tempPaths {
		if p == path {
			s.tempPaths = append(s.tempPaths[:i], s.tempPaths[i+1:]...)
			return
		}
	}
}

// TrackTask registers a named background task. cancel requests the task
// to stop; done must close when the task has finished.
func (s *Scope) TrackTask(name string, cancel context.CancelFunc, done <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[name]; !exists {
		s.taskOrder = append(s.taskOrder, name)
	}
	s.tasks[name] = trackedTask{cancel: cancel, done: done}
	s.logger.Debug().Str("task", name).Msg("Tracking background task")
}

// Close disposes all tracked resources. It is idempotent and never
// panics; every error is logged and counted, and the slice of errors is
// returned for callers that want them.
func (s *Scope) Close() []error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	tasks := make([]trackedTask, 0, len(s.taskOrder))
	taskNames := append([]string(nil), s.taskOrder...)
	for _, name := range s.taskOrder {
		tasks = append(tasks, s.tasks[name])
	}
	files := s.files
	connNames := append([]string(nil), s.connOrder...)
	conns := make([]io.Closer, 0, len(connNames))
	for _, name := range connNames {
		conns = append(conns, s.conns[name])
	}
	tempPaths := s.tempPaths
	s.mu.Unlock()

	var errs []error
	record := func(err error, msg string) {
		if err != nil {
			errs = append(errs, err)
			metrics.ResourceCleanupErrors.Inc()
			s.logger.Warn().Err(err).Msg(msg)
		}
	}

	// 1. Cancel background tasks; wait briefly, log and proceed on timeout
	for i, task := range tasks {
		task.cancel()
		if task.done == nil {
			continue
		}
		select {
		case <-task.done:
		case <-time.After(taskCancelGrace):
			s.logger.Warn().Str("task", taskNames[i]).Msg("Task did not stop within cancellation grace")
		}
	}

	// 2. Close file handles; already-closed is not an error
	for _, f := range files {
		if err := f.closer.Close(); err != nil && !isAlreadyClosed(err) {
			record(err, "Failed to close file handle "+f.name)
		}
	}

	// 3. Close named connections
	for i, c := range conns {
		if err := c.Close(); err != nil && !isAlreadyClosed(err) {
			record(err, "Failed to close connection "+connNames[i])
		}
	}

	// 4. Remove temporary paths
	for _, path := range tempPaths {
		if err := os.RemoveAll(path); err != nil {
			record(err, "Failed to remove temp path "+path)
		}
	}

	// 5. Memory check
	if s.monitor != nil {
		s.monitor.ForceGC()
		for _, warning := range s.monitor.CheckForLeaks() {
			metrics.MemoryLeakWarnings.WithLabelValues(warning.Severity()).Inc()
			s.logger.Warn().
				Float64("growth_mb", warning.GrowthMB).
				Float64("current_mb", warning.CurrentMB).
				Float64("baseline_mb", warning.BaselineMB).
				Float64("threshold_mb", warning.ThresholdMB).
				Str("severity", warning.Severity()).
				Strs("recommendations", warning.Recommendations()).
				Msg("Memory growth detected during operation")
		}
	}

	return errs
}

func isAlreadyClosed(err error) bool {
	return errors.Is(err, os.ErrClosed)
}
