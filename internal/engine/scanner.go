package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/confluence/backend/internal/instrument"
	"github.com/wonny/confluence/backend/internal/keylock"
	"github.com/wonny/confluence/backend/pkg/logger"
	"github.com/wonny/confluence/backend/pkg/metrics"
	"github.com/wonny/confluence/backend/pkg/redis"
)

const (
	// DefaultScanLockTTL bounds how long a crashed instance can hold a symbol
	DefaultScanLockTTL = 2 * time.Minute

	scanConcurrency = 4
)

// Generator is the part of Service a scanner drives
type Generator interface {
	Generate(ctx context.Context, symbol string) (*GenerateResult, error)
}

// ScanOutcome summarizes one symbol scan
type ScanOutcome struct {
	Symbol   string
	Skipped  bool
	Result   *GenerateResult
	Err      error
	Duration time.Duration
}

// Scanner runs periodic generate cycles. A symbol whose previous scan is
// still in flight is skipped, never queued.
// ⭐ SSOT: 심볼별 스캔 중복 방지는 여기서만
type Scanner struct {
	gen     Generator
	local   *keylock.Map
	remote  *redis.Locker // optional, for multi-instance deployments
	lockTTL time.Duration
	metrics *metrics.Recorder
	logger  *logger.Logger
}

// NewScanner creates a scanner. remote and rec may be nil.
func NewScanner(gen Generator, remote *redis.Locker, log *logger.Logger, rec *metrics.Recorder) *Scanner {
	if log == nil {
		log = logger.Nop()
	}
	return &Scanner{
		gen:     gen,
		local:   keylock.New(),
		remote:  remote,
		lockTTL: DefaultScanLockTTL,
		metrics: rec,
		logger:  log,
	}
}

// ScanSymbol runs one cycle. The caller's cancellation does not interrupt
// a cycle that has started.
func (s *Scanner) ScanSymbol(ctx context.Context, symbol string) ScanOutcome {
	symbol = instrument.Normalize(symbol)
	out := ScanOutcome{Symbol: symbol}
	log := s.logger.WithSymbol(symbol)

	unlock, ok := s.local.TryLock(symbol)
	if !ok {
		out.Skipped = true
		s.metrics.ScanSkipped(symbol)
		log.Debug("Scan still in flight, skipping")
		return out
	}
	defer unlock()

	ctx = context.WithoutCancel(ctx)

	if s.remote != nil {
		lock, held, err := s.remote.TryLock(ctx, "scan:"+symbol, s.lockTTL)
		if err != nil {
			// Redis 장애 시 단일 인스턴스로 간주하고 진행
			log.WithError(err).Warn("Scan lock unavailable, continuing with local lock")
		} else if !held {
			out.Skipped = true
			s.metrics.ScanSkipped(symbol)
			log.Debug("Scan held by another instance, skipping")
			return out
		} else {
			defer func() {
				if err := s.remote.Unlock(ctx, lock); err != nil {
					log.WithError(err).Warn("Scan unlock failed")
				}
			}()
		}
	}

	start := time.Now()
	out.Result, out.Err = s.gen.Generate(ctx, symbol)
	out.Duration = time.Since(start)

	if out.Err != nil {
		s.metrics.ScanFailed(symbol)
		log.WithError(out.Err).Error("Scan failed")
		return out
	}

	s.metrics.ScanCompleted(symbol, out.Duration)
	switch {
	case out.Result.Signal != nil:
		log.WithFields(map[string]interface{}{
			"signal_id": out.Result.Signal.ID,
			"quality":   out.Result.Signal.Quality,
		}).Info("Scan published signal")
	case out.Result.Rejection != nil:
		log.WithFields(map[string]interface{}{
			"reason":    out.Result.Rejection.Reason,
			"composite": out.Result.Rejection.CompositeScore,
		}).Debug("Scan found no setup")
	}
	return out
}

// ScanAll scans symbols with bounded concurrency, returning outcomes in
// input order
func (s *Scanner) ScanAll(ctx context.Context, symbols []string) []ScanOutcome {
	outcomes := make([]ScanOutcome, len(symbols))

	var g errgroup.Group
	g.SetLimit(scanConcurrency)

	for i, sym := range symbols {
		g.Go(func() error {
			outcomes[i] = s.ScanSymbol(ctx, sym)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
