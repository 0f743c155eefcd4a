package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/confluence/backend/pkg/logger"
)

// SignalExpirer is the part of signals.Manager the expiry job drives
type SignalExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
	SyncOpenGauge(ctx context.Context) error
}

// ExpiryJob closes signals past their holding period
type ExpiryJob struct {
	signals SignalExpirer
	logger  *logger.Logger
	now     func() time.Time
}

// NewExpiryJob creates the expiry sweep
func NewExpiryJob(signals SignalExpirer, log *logger.Logger) *ExpiryJob {
	if log == nil {
		log = logger.Nop()
	}
	return &ExpiryJob{signals: signals, logger: log, now: time.Now}
}

func (j *ExpiryJob) Name() string     { return "signal_expiry" }
func (j *ExpiryJob) Schedule() string { return "0 * * * * *" } // every minute
func (j *ExpiryJob) MaxRetries() int  { return 1 }

func (j *ExpiryJob) Run(ctx context.Context) error {
	n, err := j.signals.ExpireDue(ctx, j.now().UTC())
	if n > 0 {
		j.logger.WithField("expired", n).Info("Expired signals")
	}
	if err != nil {
		return fmt.Errorf("expire signals: %w", err)
	}
	return j.signals.SyncOpenGauge(ctx)
}
