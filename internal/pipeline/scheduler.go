package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler reruns a job on a cron schedule. A tick that fires while the
// previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	job    func(ctx context.Context)
	logger zerolog.Logger
}

// NewScheduler validates spec, a standard five-field expression or a
// descriptor such as "@every 6h".
func NewScheduler(spec string, job func(ctx context.Context), logger zerolog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		spec:   spec,
		job:    job,
		logger: logger,
	}, nil
}

// Run starts the schedule and blocks until ctx is done. With immediate set
// the job also runs once at startup. Run waits for in-flight jobs before
// returning.
func (s *Scheduler) Run(ctx context.Context, immediate bool) error {
	id, err := s.cron.AddFunc(s.spec, func() { s.job(ctx) })
	if err != nil {
		return fmt.Errorf("cron add: %w", err)
	}

	s.cron.Start()
	s.logger.Info().Str("schedule", s.spec).Time("next", s.cron.Entry(id).Next).Msg("scheduler started")

	var wg sync.WaitGroup
	if immediate {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Through the wrapped job so an early tick is skipped while it runs.
			s.cron.Entry(id).WrappedJob.Run()
		}()
	}

	<-ctx.Done()
	<-s.cron.Stop().Done()
	wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
	return nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
