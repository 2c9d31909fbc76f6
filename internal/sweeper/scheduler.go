package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Report holds the counts of a single cleanup run.
type Report struct {
	Expired  int
	Inactive int
}

type SchedulerConfig struct {
	Schedule     string
	InactiveDays int
	Timeout      time.Duration
	RunOnStart   bool
}

// Scheduler runs both sweeps on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	sweeper *Sweeper
	cfg     SchedulerConfig
	log     *zap.Logger
}

func NewScheduler(sweeper *Sweeper, cfg SchedulerConfig, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}

	return &Scheduler{
		sweeper: sweeper,
		cfg:     cfg,
		log:     log.Named("scheduler"),
	}
}

// RunOnce sweeps expired URLs, then inactive ones. The inactive sweep runs even
// if the expired one failed.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	const op = "sweeper.Scheduler.RunOnce"

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	var (
		report Report
		errs   []error
		err    error
	)

	if report.Expired, err = s.sweeper.SweepExpired(ctx); err != nil {
		errs = append(errs, err)
	}
	if report.Inactive, err = s.sweeper.SweepInactive(ctx, s.cfg.InactiveDays); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}

	return report, nil
}

// Start blocks until ctx is done, running sweeps on schedule. The run on start
// shares the scheduled job, so it never overlaps a scheduled run, and Start
// returns only after it has finished.
func (s *Scheduler) Start(ctx context.Context) error {
	const op = "sweeper.Scheduler.Start"

	schedule, err := cron.ParseStandard(s.cfg.Schedule)
	if err != nil {
		return fmt.Errorf("%s: invalid schedule %q: %w", op, s.cfg.Schedule, err)
	}

	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).
		Then(cron.FuncJob(func() { s.run(ctx) }))

	c := cron.New()
	c.Schedule(schedule, job)

	var wg sync.WaitGroup
	if s.cfg.RunOnStart {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job.Run()
		}()
	}

	c.Start()
	s.log.Info("cleanup scheduled", zap.String("schedule", s.cfg.Schedule))

	<-ctx.Done()
	<-c.Stop().Done()
	wg.Wait()

	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	report, err := s.RunOnce(ctx)
	if err != nil {
		s.log.Error("cleanup failed", zap.Error(err))
		return
	}

	s.log.Info("cleanup finished", zap.Int("expired", report.Expired), zap.Int("inactive", report.Inactive))
}
