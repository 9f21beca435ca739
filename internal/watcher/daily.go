package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ParseClock reads a "HH:MM" wall-clock time.
func ParseClock(at string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", at, err)
	}
	return t.Hour(), t.Minute(), nil
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

// RunDaily calls job once a day at the wall-clock time at in loc, until ctx is
// cancelled. Job errors are logged and do not stop the schedule.
func RunDaily(ctx context.Context, at string, loc *time.Location, job func(context.Context) error, logger logrus.FieldLogger) error {
	hour, minute, err := ParseClock(at)
	if err != nil {
		return err
	}
	if loc == nil {
		loc = time.UTC
	}
	log := logger.WithFields(logrus.Fields{"component": "daily", "at": at, "timezone": loc.String()})

	for {
		next := NextRun(time.Now(), hour, minute, loc)
		log.WithField("next_run", next.Format(time.RFC3339)).Info("Daily job scheduled")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("Daily scheduler stopped")
			return nil
		case <-timer.C:
		}

		start := time.Now()
		if err := job(ctx); err != nil {
			log.WithError(err).Error("Daily job failed")
			continue
		}
		log.WithField("duration", time.Since(start).String()).Info("Daily job finished")
	}
}
