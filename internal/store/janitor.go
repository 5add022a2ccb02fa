package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

// Janitor periodically sweeps expired keys on a cron schedule.
type Janitor struct {
	svc      *Service
	schedule string
	gron     *gronx.Gronx
}

// NewJanitor validates the cron expression and returns the janitor, or nil
// with ok=false when the expression is unusable.
func NewJanitor(svc *Service, schedule string) (*Janitor, bool) {
	if schedule == "" {
		schedule = "@hourly"
	}
	gron := gronx.New()
	if !gron.IsValid(schedule) {
		return nil, false
	}
	return &Janitor{svc: svc, schedule: schedule, gron: gron}, true
}

// Run checks the schedule once a minute and sweeps when due, until ctx is
// cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := j.gron.IsDue(j.schedule, now)
			if err != nil || !due {
				continue
			}
			swept, err := j.svc.SweepExpired(ctx, now.UTC())
			if err != nil {
				slog.Warn("expired key sweep failed", "error", err)
				continue
			}
			if swept > 0 {
				slog.Info("expired api keys revoked", "count", swept)
			}
		}
	}
}
