// Package supervisor runs fire-and-forget background work (summary
// pre-caching, cache purges, event publishing) as tracked tasks that can be
// drained or canceled on shutdown.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/helixir/paper-search-service/internal/observability"
)

// ErrClosed is returned by Shutdown on a supervisor that was already shut down.
var ErrClosed = errors.New("supervisor: closed")

// Task is a unit of background work. The context is canceled when the
// supervisor shuts down without draining.
type Task func(ctx context.Context) error

// Config configures a Supervisor.
type Config struct {
	// MaxConcurrent bounds how many tasks run at once; extra tasks queue.
	// Default: 4
	MaxConcurrent int
	Logger        zerolog.Logger
	Metrics       *observability.Metrics
}

// Supervisor owns a set of background tasks.
type Supervisor struct {
	sem     *semaphore.Weighted
	logger  zerolog.Logger
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active map[string]string
	closed bool
}

// New creates a Supervisor.
func New(cfg Config) *Supervisor {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:  cfg.Logger.With().Str("component", "supervisor").Logger(),
		metrics: cfg.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		active:  make(map[string]string),
	}
}

// Go schedules fn under name and returns the task id. It returns ok=false
// when the supervisor is shutting down.
func (s *Supervisor) Go(name string, fn Task) (id string, ok bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.metrics.RecordBackgroundTask("rejected")
		s.logger.Debug().Str("task", name).Msg("rejecting task after shutdown")
		return "", false
	}
	id = uuid.NewString()
	s.active[id] = name
	s.wg.Add(1)
	n := len(s.active)
	s.mu.Unlock()

	s.metrics.RecordBackgroundTask("started")
	s.metrics.SetBackgroundTasksActive(n)

	go s.run(id, name, fn)
	return id, true
}

func (s *Supervisor) run(id, name string, fn Task) {
	defer s.wg.Done()
	defer s.finish(id)

	logger := s.logger.With().Str("task", name).Str("task_id", id).Logger()

	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		s.metrics.RecordBackgroundTask("canceled")
		logger.Debug().Msg("task canceled before start")
		return
	}
	defer s.sem.Release(1)

	start := time.Now()
	err := s.invoke(fn)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		s.metrics.RecordBackgroundTask("succeeded")
		logger.Debug().Dur("duration", elapsed).Msg("background task completed")
	case errors.Is(err, errPanicked):
		s.metrics.RecordBackgroundTask("panicked")
		logger.Error().Err(err).Dur("duration", elapsed).Msg("background task panicked")
	default:
		s.metrics.RecordBackgroundTask("failed")
		logger.Warn().Err(err).Dur("duration", elapsed).Msg("background task failed")
	}
}

var errPanicked = errors.New("panic")

func (s *Supervisor) invoke(fn Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanicked, r)
		}
	}()
	return fn(s.ctx)
}

func (s *Supervisor) finish(id string) {
	s.mu.Lock()
	delete(s.active, id)
	n := len(s.active)
	s.mu.Unlock()
	s.metrics.SetBackgroundTasksActive(n)
}

// Active returns the number of queued or running tasks.
func (s *Supervisor) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Shutdown stops accepting tasks. With wait=true it lets pending tasks finish;
// otherwise it cancels them. Either way it blocks until every task has
// returned or ctx ends, in which case the tasks still outstanding are
// canceled and ctx's error is returned.
func (s *Supervisor) Shutdown(ctx context.Context, wait bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	pending := len(s.active)
	s.mu.Unlock()

	s.logger.Info().Int("pending", pending).Bool("drain", wait).Msg("shutting down background tasks")
	if !wait {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		s.logger.Warn().Int("abandoned", s.Active()).Msg("shutdown deadline reached with tasks outstanding")
		return ctx.Err()
	}
}
