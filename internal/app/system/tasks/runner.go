// internal/app/system/tasks/runner.go
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a named unit of periodic background work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner runs jobs on their own tickers until Stop is called.
type Runner struct {
	log     *zap.Logger
	timeout time.Duration
	jobs    []Job

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a runner. Each job run gets a context bounded by timeout.
func NewRunner(logger *zap.Logger, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{log: logger, timeout: timeout}
}

// Add registers a job. Jobs added after Start are ignored.
func (r *Runner) Add(j Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		r.log.Warn("job added after start; ignored", zap.String("job", j.Name))
		return
	}
	r.jobs = append(r.jobs, j)
}

// Start launches one goroutine per job.
func (r *Runner) Start(parent context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	for _, j := range r.jobs {
		if j.Interval <= 0 || j.Run == nil {
			r.log.Warn("job skipped: missing interval or run func", zap.String("job", j.Name))
			continue
		}
		r.wg.Add(1)
		go r.loop(ctx, j)
	}
	r.log.Info("task runner started", zap.Int("jobs", len(r.jobs)))
}

// Stop cancels all jobs and waits for in-flight runs to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
	r.log.Info("task runner stopped")
}

func (r *Runner) loop(ctx context.Context, j Job) {
	defer r.wg.Done()

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx, j)
		}
	}
}

func (r *Runner) runOnce(parent context.Context, j Job) {
	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("job panicked", zap.String("job", j.Name), zap.Any("panic", rec))
		}
	}()

	if err := j.Run(ctx); err != nil {
		r.log.Error("job failed", zap.String("job", j.Name), zap.Error(err))
	}
}
