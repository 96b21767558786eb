package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler paces iterations of a sequential loop. Unlike a cron runner it
// never fires jobs on its own; callers block in Wait between iterations.
type Scheduler struct {
	schedule cron.Schedule
	now      func() time.Time
}

// NewInterval returns a scheduler that activates every d, rounded down to
// whole seconds with a one second minimum. Activations land on second
// boundaries and never sooner than that interval after the call to Next.
func NewInterval(d time.Duration) *Scheduler {
	return &Scheduler{
		schedule: cron.Every(d),
		now:      time.Now,
	}
}

func (s *Scheduler) Next() time.Time {
	// cron.Every truncates the start to its second, which would cut up to a
	// second off the wait. Start from the next boundary instead.
	return s.schedule.Next(s.now().Add(time.Second - time.Nanosecond))
}

// Wait blocks until the next activation or until ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	timer := time.NewTimer(time.Until(s.Next()))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
