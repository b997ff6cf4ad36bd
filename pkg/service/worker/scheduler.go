package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

var ErrUnknownJob = goerr.New("unknown job")

// Job is a named task fired by the scheduler.
type Job struct {
	Name string
	Spec Spec
	Run  func(ctx context.Context) error
}

// RunHook observes every job run.
type RunHook func(ctx context.Context, job string, err error, elapsed time.Duration)

// Scheduler fires jobs at their Spec times. It assumes a single running
// instance; reminder deduplication relies on the notify ledger otherwise.
type Scheduler struct {
	jobs   []Job
	loc    *time.Location
	clock  func() time.Time
	hooks  []RunHook
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Scheduler)

func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.loc = loc
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

func WithRunHook(hook RunHook) Option {
	return func(s *Scheduler) {
		s.hooks = append(s.hooks, hook)
	}
}

func NewScheduler(jobs []Job, opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:   jobs,
		loc:    time.UTC,
		clock:  time.Now,
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Jobs returns the registered jobs.
func (s *Scheduler) Jobs() []Job {
	return s.jobs
}

// Start launches one goroutine per job and returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, job := range s.jobs {
		if err := job.Spec.Validate(); err != nil {
			return goerr.Wrap(err, "invalid job schedule", goerr.V("job", job.Name))
		}
	}

	logging.Default().Info("scheduler starting", "jobs", len(s.jobs), "location", s.loc.String())
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	return nil
}

// Stop signals every job loop to exit and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		logging.Default().Info("scheduler stopping")
		close(s.stopCh)
	})
	s.wg.Wait()
	logging.Default().Info("scheduler stopped")
}

// RunNow runs the named job once in the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name == name {
			return s.execute(ctx, job)
		}
	}
	return goerr.Wrap(ErrUnknownJob, "cannot run job", goerr.V("job", name))
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	// lastFired keeps an early timer wake from firing the same slot twice
	var lastFired time.Time
	for {
		now := s.clock().In(s.loc)
		from := now
		if from.Before(lastFired) {
			from = lastFired
		}
		next := job.Spec.Next(from)
		if next.IsZero() {
			logging.Default().Error("job has no next run time", "job", job.Name, "spec", job.Spec.String())
			return
		}
		logging.Default().Debug("job scheduled", "job", job.Name, "next", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-timer.C:
			lastFired = next
			// errors are logged and passed to hooks by execute
			_ = s.execute(ctx, job)

		case <-s.stopCh:
			timer.Stop()
			return

		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, job Job) (err error) {
	logger := logging.From(ctx).With("job", job.Name, "run_id", uuid.NewString())
	ctx = logging.With(ctx, logger)

	start := s.clock()
	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("job panicked", goerr.V("job", job.Name), goerr.V("panic", r))
		}

		elapsed := s.clock().Sub(start)
		if err != nil {
			logger.Error("job failed", "error", err, "elapsed", elapsed)
		} else {
			logger.Info("job finished", "elapsed", elapsed)
		}
		for _, hook := range s.hooks {
			hook(ctx, job.Name, err, elapsed)
		}
	}()

	logger.Info("job started")
	return job.Run(ctx)
}
