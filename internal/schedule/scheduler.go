package schedule

import (
	"context"
	"errors"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrStopped means the scheduler is already stopped.
var ErrStopped = errors.New("scheduler stopped")

// Task is a job to run.
type Task func(ctx context.Context)

// Scheduler runs tasks on their schedules.
//
// A scheduled run is skipped while the previous run of the same task is still running.
// Tasks passed to OnDemand are never skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger cronLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	kicks   []cron.Job
	wg      sync.WaitGroup
}

// New makes a Scheduler that logs via logger.
func New(logger zerolog.Logger) *Scheduler {
	cl := cronLogger{logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl)),
		logger: cl,
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnTick registers a task that runs on schedule.
// The context passed to the task is canceled if Stop gives up waiting.
func (s *Scheduler) OnTick(schedule Schedule, name string, task Task) {
	job := cron.NewChain(
		cron.Recover(s.logger),
		cron.SkipIfStillRunning(s.logger),
	).Then(cron.FuncJob(func() {
		s.logger.logger.Debug().Str("job", name).Msg("run scheduled job")
		task(s.ctx)
	}))

	s.cron.Schedule(schedule, job)

	if schedule.RunAtStart() {
		s.mu.Lock()
		s.kicks = append(s.kicks, job)
		s.mu.Unlock()
	}
}

// OnDemand runs a task synchronously out of schedule.
// Stop waits for the demanded tasks too.
func (s *Scheduler) OnDemand(ctx context.Context, task func(ctx context.Context) error) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	return task(ctx)
}

// Start starts the scheduler, and kicks the tasks that should run at start.
func (s *Scheduler) Start() {
	s.mu.Lock()
	kicks := s.kicks
	s.kicks = nil
	s.mu.Unlock()

	s.cron.Start()

	for _, job := range kicks {
		s.wg.Add(1)
		go func(job cron.Job) {
			defer s.wg.Done()
			job.Run()
		}(job)
	}
}

// Stop stops the scheduler and waits for the running tasks.
// If ctx is done before they finish, the context of the scheduled tasks is canceled and Stop waits again.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	stopped := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.logger.Warn().Msg("canceling running jobs")
		s.cancel()
		<-done
	}
	s.cancel()
}

// cronLogger writes logs of cron into zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
