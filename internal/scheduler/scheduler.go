package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/weather-s3-etl/internal/domain"
	"github.com/go-co-op/gocron"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("run already in progress")

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context) (domain.RunReport, error)
}

// Options controls when runs happen and how failed runs are retried.
type Options struct {
	// Schedule is a standard cron expression or descriptor such as "@daily".
	Schedule string
	// Retries is the number of extra attempts after a failed run.
	Retries    int
	RetryDelay time.Duration
}

// Scheduler starts pipeline runs on a cron schedule or on demand. At most one
// run is active at a time; missed intervals are not backfilled.
type Scheduler struct {
	cron   *gocron.Scheduler
	runner Runner
	opts   Options
	logger *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler. Nothing runs until Start or RunNow is called.
func New(runner Runner, opts Options, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   gocron.NewScheduler(time.UTC),
		runner: runner,
		opts:   opts,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start registers the cron job and starts the scheduler in the background.
// Runs are bound to ctx; cancelling it aborts the active run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	_, err := s.cron.Cron(s.opts.Schedule).SingletonMode().Do(s.scheduled)
	if err != nil {
		return err
	}

	s.cron.StartAsync()
	s.logger.Info("scheduler started", "schedule", s.opts.Schedule, "retries", s.opts.Retries, "retry_delay", s.opts.RetryDelay)
	return nil
}

// Stop cancels the active run, stops future runs and waits for the active
// run to return. The cancel comes first since cron.Stop blocks on running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.cron.Stop()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Running reports whether a run is active.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// RunNow runs the pipeline synchronously, retrying within the budget. It
// returns the last attempt's report.
func (s *Scheduler) RunNow(ctx context.Context) (domain.RunReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return domain.RunReport{}, ErrRunInProgress
	}
	defer s.running.Store(false)
	return s.runWithRetries(ctx)
}

// Trigger starts a run in the background and returns immediately.
func (s *Scheduler) Trigger() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	ctx := s.runContext()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.logger.Info("manual run triggered")
		_, _ = s.runWithRetries(ctx)
	}()
	return nil
}

func (s *Scheduler) scheduled() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("scheduled run skipped", "reason", ErrRunInProgress.Error())
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	defer s.running.Store(false)
	_, _ = s.runWithRetries(s.runContext())
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) runWithRetries(ctx context.Context) (domain.RunReport, error) {
	attempts := s.opts.Retries + 1
	var (
		report domain.RunReport
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		report, err = s.runner.Run(ctx)
		if err == nil {
			return report, nil
		}
		if attempt == attempts || ctx.Err() != nil {
			break
		}
		s.logger.Warn("run failed, retrying",
			"attempt", attempt, "max_attempts", attempts, "delay", s.opts.RetryDelay, "error", err)
		if !retry.SleepWithContext(ctx, s.opts.RetryDelay) {
			break
		}
	}
	return report, err
}
