package overdue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidHour is returned for sweep hours outside 0..23.
var ErrInvalidHour = errors.New("sweep hour must be between 0 and 23")

const (
	logMsgNextSweep   = "overdue: next sweep scheduled"
	logMsgRescheduled = "overdue: sweep hour changed"
	logMsgCronPrefix  = "overdue: cron "
)

// Scheduler runs a daily sweep at a fixed hour of the clock's location.
type Scheduler struct {
	sweeper *Sweeper
	clock   func() time.Time

	mu     sync.Mutex
	hour   int
	cron   *cron.Cron
	entry  cron.EntryID
	runCtx context.Context
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock replaces time.Now, the clock's location decides what "hour" means.
func WithSchedulerClock(clock func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.clock = clock }
}

// NewScheduler creates a Scheduler sweeping every day at hour:00.
func NewScheduler(sweeper *Sweeper, hour int, options ...SchedulerOption) (*Scheduler, error) {
	if hour < 0 || hour > 23 {
		return nil, ErrInvalidHour
	}

	s := &Scheduler{
		sweeper: sweeper,
		hour:    hour,
		clock:   time.Now,
	}

	for _, option := range options {
		option(s)
	}

	return s, nil
}

// DailySpec returns the standard five field cron expression for hour:00 every day.
func DailySpec(hour int) string {
	return fmt.Sprintf("0 %d * * *", hour)
}

// NextRun returns the first point in time at hour:00 strictly after now, in now's location.
func NextRun(now time.Time, hour int) time.Time {
	schedule, err := cron.ParseStandard(DailySpec(hour))
	if err != nil {
		return time.Time{}
	}

	return schedule.Next(now)
}

// RunOnce performs an immediate sweep at the clock's current time.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	return s.sweeper.Sweep(ctx, s.clock())
}

// Hour returns the hour the scheduler currently sweeps at.
func (s *Scheduler) Hour() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hour
}

// Next returns when the running schedule fires next, or the zero time when Run is not active.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return time.Time{}
	}

	return s.cron.Entry(s.entry).Next
}

// Reschedule changes the sweep hour; a running schedule swaps its cron entry for the new hour.
func (s *Scheduler) Reschedule(ctx context.Context, hour int) error {
	if hour < 0 || hour > 23 {
		return ErrInvalidHour
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hour == hour {
		return nil
	}

	if s.cron != nil {
		runCtx := s.runCtx

		id, err := s.cron.AddFunc(DailySpec(hour), func() { s.runScheduled(runCtx) })
		if err != nil {
			return err
		}

		s.cron.Remove(s.entry)
		s.entry = id
	}

	s.hour = hour
	s.sweeper.logInfo(ctx, logMsgRescheduled, "hour", hour)

	return nil
}

// Run sweeps once per day until ctx is done, then returns ctx.Err().
// Failed sweeps are logged by the Sweeper and do not stop the schedule.
// A sweep that is still running when the next one is due makes the next one skip.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(s.clock().Location()),
		cron.WithLogger(cronLogger{ctx: ctx, sweeper: s.sweeper}),
		cron.WithChain(cron.Recover(cronLogger{ctx: ctx, sweeper: s.sweeper}),
			cron.SkipIfStillRunning(cronLogger{ctx: ctx, sweeper: s.sweeper})),
	)

	s.mu.Lock()
	id, err := c.AddFunc(DailySpec(s.hour), func() { s.runScheduled(ctx) })
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.cron, s.entry, s.runCtx = c, id, ctx
	hour := s.hour
	s.mu.Unlock()

	s.sweeper.logInfo(ctx, logMsgNextSweep, "at", NextRun(s.clock(), hour).Format(time.RFC3339))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()

	s.mu.Lock()
	s.cron, s.runCtx = nil, nil
	s.mu.Unlock()

	return ctx.Err()
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		return // the Sweeper has logged it
	}

	s.sweeper.logInfo(ctx, logMsgNextSweep, "at", NextRun(s.clock(), s.Hour()).Format(time.RFC3339))
}

// cronLogger routes the cron runtime's own messages into the Sweeper's loggers.
type cronLogger struct {
	ctx     context.Context
	sweeper *Sweeper
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.sweeper.logDebug(l.ctx, logMsgCronPrefix+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.sweeper.logError(l.ctx, logMsgCronPrefix+msg, append(keysAndValues, "error", err.Error())...)
}
