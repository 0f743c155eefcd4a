package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/confluence/backend/pkg/logger"
)

// CalendarRefresher re-scrapes one calendar day (*calendar.Client)
type CalendarRefresher interface {
	Refresh(ctx context.Context, day time.Time) (int, error)
}

// CalendarRefreshJob keeps today's and tomorrow's releases current
type CalendarRefreshJob struct {
	calendar CalendarRefresher
	logger   *logger.Logger
	now      func() time.Time
}

// NewCalendarRefreshJob creates the calendar refresh job
func NewCalendarRefreshJob(cal CalendarRefresher, log *logger.Logger) *CalendarRefreshJob {
	if log == nil {
		log = logger.Nop()
	}
	return &CalendarRefreshJob{calendar: cal, logger: log, now: time.Now}
}

func (j *CalendarRefreshJob) Name() string     { return "calendar_refresh" }
func (j *CalendarRefreshJob) Schedule() string { return "0 5 * * * *" } // hourly at :05
func (j *CalendarRefreshJob) MaxRetries() int  { return 2 }

func (j *CalendarRefreshJob) Run(ctx context.Context) error {
	today := j.now().UTC()
	total := 0
	for _, day := range []time.Time{today, today.AddDate(0, 0, 1)} {
		n, err := j.calendar.Refresh(ctx, day)
		if err != nil {
			return fmt.Errorf("refresh calendar %s: %w", day.Format("2006-01-02"), err)
		}
		total += n
	}
	j.logger.WithField("events", total).Debug("Calendar refreshed")
	return nil
}
