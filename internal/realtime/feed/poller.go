package feed

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/realtime"
	"github.com/wonny/confluence/backend/pkg/logger"
	"github.com/wonny/confluence/backend/pkg/metrics"
)

// QuoteSource fetches a top-of-book snapshot
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (*contracts.Quote, error)
}

// RESTPoller polls quotes for the watch list under a request rate limit
// ⭐ SSOT: REST 폴링 및 Rate Limit 관리는 이 폴러에서만
type RESTPoller struct {
	quotes    QuoteSource
	watch     func(ctx context.Context) []string
	interval  time.Duration
	limiter   *rate.Limiter
	publisher Publisher
	metrics   *metrics.Recorder
	logger    *logger.Logger
}

// NewRESTPoller creates a poller. watch is called every round so newly
// opened signals are picked up.
func NewRESTPoller(quotes QuoteSource, watch func(ctx context.Context) []string, interval time.Duration, perSecond int, pub Publisher, log *logger.Logger, rec *metrics.Recorder) *RESTPoller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if perSecond <= 0 {
		perSecond = 5
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RESTPoller{
		quotes:    quotes,
		watch:     watch,
		interval:  interval,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), perSecond),
		publisher: pub,
		metrics:   rec,
		logger:    log.WithField("source", string(realtime.SourceREST)),
	}
}

func (p *RESTPoller) Name() string { return string(realtime.SourceREST) }

// Run polls until ctx is done
func (p *RESTPoller) Run(ctx context.Context) error {
	p.logger.WithField("interval", p.interval.String()).Info("Starting REST poller")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.PollOnce(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce fetches every watched symbol once and returns how many ticks
// were accepted
func (p *RESTPoller) PollOnce(ctx context.Context) int {
	accepted := 0
	for _, symbol := range p.watch(ctx) {
		if err := p.limiter.Wait(ctx); err != nil {
			return accepted
		}

		q, err := p.quotes.Quote(ctx, symbol)
		if err != nil {
			p.metrics.ExternalError("quotes")
			p.logger.WithSymbol(symbol).WithError(err).Warn("Quote poll failed")
			continue
		}

		tick := contracts.PriceTick{
			Symbol: symbol,
			Bid:    q.Bid,
			Ask:    q.Ask,
			Source: string(realtime.SourceREST),
			At:     q.Time,
		}
		if p.publisher.Publish(ctx, tick) {
			accepted++
		}
	}
	return accepted
}
