package overdue

import "context"

// RunScheduledSweep runs the job the cron entry fires, without waiting for the clock.
func RunScheduledSweep(ctx context.Context, s *Scheduler) {
	s.runScheduled(ctx)
}
