package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-premerge/internal/clock"
)

// RunFunc is the job triggered by the schedule.
type RunFunc func(ctx context.Context) error

// DailySchedule triggers a job once a day at a wall-clock time.
type DailySchedule struct {
	hour     int
	minute   int
	location *time.Location
	clock    clock.Clock
	run      RunFunc
	logger   *zap.Logger
}

func NewDailySchedule(hour, minute int, location *time.Location, clk clock.Clock, run RunFunc, logger *zap.Logger) *DailySchedule {
	if location == nil {
		location = time.UTC
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailySchedule{hour: hour, minute: minute, location: location, clock: clk, run: run, logger: logger}
}

// NextRun returns the first hour:minute in loc strictly after now.
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

// Start blocks until ctx is cancelled, running the job at each scheduled
// time. A failing job is logged and the schedule continues.
func (d *DailySchedule) Start(ctx context.Context) error {
	for {
		next := NextRun(d.clock.Now(), d.hour, d.minute, d.location)
		d.logger.Info("next scheduled run", zap.Time("at", next))

		if err := d.clock.Sleep(ctx, next.Sub(d.clock.Now())); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		if err := d.run(ctx); err != nil {
			d.logger.Error("scheduled run failed", zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
