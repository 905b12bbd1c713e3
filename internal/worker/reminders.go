package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"contabilidad/internal/core"
	"contabilidad/internal/log"
)

// OverdueRefresher moves open reminders between pending and overdue.
type OverdueRefresher interface {
	RefreshOverdue(ctx context.Context, today core.Date) (marked, reopened int64, err error)
}

// ReminderScheduler runs RefreshOverdue on a cron schedule.
type ReminderScheduler struct {
	refresher OverdueRefresher
	schedule  string
	today     func() core.Date
	cron      *cron.Cron
}

func NewReminderScheduler(refresher OverdueRefresher, schedule string) *ReminderScheduler {
	return &ReminderScheduler{
		refresher: refresher,
		schedule:  schedule,
		today:     core.Today,
		cron:      cron.New(),
	}
}

// RunOnce refreshes statuses for today.
func (s *ReminderScheduler) RunOnce(ctx context.Context) error {
	today := s.today()
	marked, reopened, err := s.refresher.RefreshOverdue(ctx, today)
	if err != nil {
		return err
	}
	log.FromContext(ctx).WithComponent(log.ComponentWorker).InfoContext(ctx, "Reminder refresh complete",
		log.FieldDate, today.String(), "overdue", marked, "reopened", reopened)
	return nil
}

// Start runs one refresh immediately, then schedules the job. The job stops
// when ctx is cancelled or Stop is called.
func (s *ReminderScheduler) Start(ctx context.Context) error {
	if err := s.RunOnce(ctx); err != nil {
		log.LogError(ctx, "Initial reminder refresh failed", err, log.ComponentWorker, log.OpRefresh, log.ErrorTypeDatabase, nil)
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		if ctx.Err() != nil {
			return
		}
		if err := s.RunOnce(ctx); err != nil {
			log.LogError(ctx, "Scheduled reminder refresh failed", err, log.ComponentWorker, log.OpRefresh, log.ErrorTypeDatabase, nil)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *ReminderScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Entries reports how many jobs are scheduled.
func (s *ReminderScheduler) Entries() int {
	return len(s.cron.Entries())
}
