package resources

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/quarryhq/quarry/pkg/log"
)

// ShutdownHandler runs registered cleanup callbacks when the process
// receives SIGINT or SIGTERM. Cleanup has a total budget; callbacks that
// would run past it are skipped.
type ShutdownHandler struct {
	mu        sync.Mutex
	budget    time.Duration
	callbacks []func()
	names     []string
	executed  bool
	signalCh  chan os.Signal
	doneCh    chan struct{}
	logger    zerolog.Logger
}

// NewShutdownHandler creates a handler with the given total cleanup budget
func NewShutdownHandler(budget time.Duration) *ShutdownHandler {
	return &ShutdownHandler{
		budget: budget,
		doneCh: make(chan struct{}),
		logger: log.WithComponent("shutdown"),
	}
}

// Register adds a named cleanup callback. Callbacks run in registration
// order during shutdown.
func (h *ShutdownHandler) Register(name string, callback func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = append(h.callbacks, callback)
	h.names = append(h.names, name)
	h.logger.Debug().Str("callback", name).Msg("Registered cleanup callback")
}

// Listen installs the signal handlers and blocks until a shutdown signal
// arrives and cleanup has run.
func (h *ShutdownHandler) Listen() {
	h.mu.Lock()
	if h.signalCh == nil {
		h.signalCh = make(chan os.Signal, 1)
		signal.Notify(h.signalCh, syscall.SIGINT, syscall.SIGTERM)
	}
	ch := h.signalCh
	h.mu.Unlock()

	sig := <-ch
	h.logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal, running cleanup")
	h.Trigger()
}

// Trigger executes cleanup once, within the total budget. Later callers
// block until the first run completes.
func (h *ShutdownHandler) Trigger() {
	h.mu.Lock()
	if h.executed {
		h.mu.Unlock()
		<-h.doneCh
		return
	}
	h.executed = true
	callbacks := append([]func(){}, h.callbacks...)
	names := append([]string{}, h.names...)
	h.mu.Unlock()

	deadline := time.Now().Add(h.budget)
	for i, callback := range callbacks {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			h.logger.Warn().
				Int("skipped", len(callbacks)-i).
				Dur("budget", h.budget).
				Msg("Cleanup budget exceeded, skipping remaining callbacks")
			break
		}
		h.runBounded(names[i], callback, remaining)
	}

	close(h.doneCh)
	h.logger.Info().Msg("Shutdown cleanup complete")
}

// runBounded runs a callback and abandons waiting for it once the
// remaining budget is spent. The callback goroutine is left to finish on
// its own; process exit reaps it.
func (h *ShutdownHandler) runBounded(name string, callback func(), remaining time.Duration) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error().Str("callback", name).Any("panic", r).Msg("Cleanup callback panicked")
			}
		}()
		callback()
	}()

	select {
	case <-done:
	case <-time.After(remaining):
		h.logger.Warn().Str("callback", name).Msg("Cleanup callback exceeded remaining budget")
	}
}
