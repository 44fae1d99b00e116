package usecase

import (
	"context"
	"fmt"
	"sync"

	"transit-console/internal/shared/logger"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the retention sweep once a day.
const DefaultSweepSchedule = "@every 24h"

// ExpiredSweeper removes expired backups.
type ExpiredSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// RetentionSweeper runs ExpiredSweeper on a cron schedule for the lifetime
// of the process. A failed sweep is logged and retried at the next tick.
type RetentionSweeper struct {
	sweeper  ExpiredSweeper
	schedule string
	log      logger.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewRetentionSweeper creates a sweeper; an empty schedule means DefaultSweepSchedule.
func NewRetentionSweeper(sweeper ExpiredSweeper, schedule string, log logger.Logger) *RetentionSweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &RetentionSweeper{sweeper: sweeper, schedule: schedule, log: log.WithComponent("retention_sweeper")}
}

// Start schedules the sweep. Calling Start on a running sweeper is a no-op.
func (r *RetentionSweeper) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}

	cl := cronLogger{log: r.log}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	runCtx, cancel := context.WithCancel(ctx)
	if _, err := c.AddFunc(r.schedule, func() { _, _ = r.RunOnce(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("invalid sweep schedule %q: %w", r.schedule, err)
	}
	c.Start()
	r.cron, r.cancel = c, cancel
	r.log.Infof("Retention sweeper started (%s)", r.schedule)
	return nil
}

// Stop halts scheduling and waits for a running sweep to return.
func (r *RetentionSweeper) Stop() {
	r.mu.Lock()
	c, cancel := r.cron, r.cancel
	r.cron, r.cancel = nil, nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	r.log.Info("Retention sweeper stopped")
}

// RunOnce performs a single sweep.
func (r *RetentionSweeper) RunOnce(ctx context.Context) (int, error) {
	deleted, err := r.sweeper.SweepExpired(ctx)
	if err != nil {
		r.log.WithError(err).Error("Retention sweep failed")
		return deleted, err
	}
	r.log.Debugf("Retention sweep removed %d backups", deleted)
	return deleted, nil
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).WithError(err).Error(msg)
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
