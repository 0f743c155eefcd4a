package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/confluence/backend/internal/confluence"
	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/instrument"
	"github.com/wonny/confluence/backend/internal/killzone"
	"github.com/wonny/confluence/backend/internal/layers"
	"github.com/wonny/confluence/backend/internal/signals"
	"github.com/wonny/confluence/backend/pkg/logger"
	"github.com/wonny/confluence/backend/pkg/metrics"
	"github.com/wonny/confluence/backend/pkg/redis"
)

// Cache is the analysis cache (*redis.Cache satisfies it)
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Analysis is one full evaluation cycle for a symbol
type Analysis struct {
	Symbol      string                     `json:"symbol"`
	Confluence  contracts.ConfluenceResult `json:"confluence"`
	Validation  contracts.ValidationResult `json:"validation"`
	Quality     contracts.Quality          `json:"quality"`
	Direction   contracts.Direction        `json:"direction"`
	LongWeight  int                        `json:"long_weight"`
	ShortWeight int                        `json:"short_weight"`
	Layers      []contracts.LayerScore     `json:"layers"`
	KillZone    contracts.KillZoneWindow   `json:"killzone"`
	Cached      bool                       `json:"cached"`
	Duration    time.Duration              `json:"duration"`
}

// GenerateResult carries either the created signal or the rejection
type GenerateResult struct {
	Analysis  *Analysis            `json:"analysis"`
	Signal    *contracts.Signal    `json:"signal,omitempty"`
	Rejection *contracts.Rejection `json:"rejection,omitempty"`
}

// Options holds market-context settings for a Service
type Options struct {
	Timeframe    string
	HTFTimeframe string
	CandleLimit  int
	CacheTTL     time.Duration
	ConfigHash   string
}

// Service runs the analysis pipeline and hands publishable setups to the
// signal manager
// ⭐ SSOT: 분석 파이프라인 조율은 여기서만
type Service struct {
	market     contracts.MarketDataProvider
	runner     *layers.Runner
	sessions   *killzone.Scheduler
	aggregator *confluence.Aggregator
	gate       *confluence.Gate
	levels     contracts.LevelProvider
	signals    *signals.Manager
	cache      Cache
	opts       Options
	metrics    *metrics.Recorder
	logger     *logger.Logger
	now        func() time.Time
}

// NewService wires the pipeline. cache and rec may be nil.
func NewService(
	market contracts.MarketDataProvider,
	runner *layers.Runner,
	sessions *killzone.Scheduler,
	aggregator *confluence.Aggregator,
	gate *confluence.Gate,
	levels contracts.LevelProvider,
	manager *signals.Manager,
	cache Cache,
	opts Options,
	log *logger.Logger,
	rec *metrics.Recorder,
) *Service {
	if opts.Timeframe == "" {
		opts.Timeframe = "H1"
	}
	if opts.HTFTimeframe == "" {
		opts.HTFTimeframe = "H4"
	}
	if opts.CandleLimit <= 0 {
		opts.CandleLimit = 200
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = redis.TTLAnalysis
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		market:     market,
		runner:     runner,
		sessions:   sessions,
		aggregator: aggregator,
		gate:       gate,
		levels:     levels,
		signals:    manager,
		cache:      cache,
		opts:       opts,
		metrics:    rec,
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the wall clock (tests)
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Analyze returns the cached analysis when one is still fresh
func (s *Service) Analyze(ctx context.Context, symbol string) (*Analysis, error) {
	symbol = instrument.Normalize(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", contracts.ErrMalformedInput)
	}

	if s.cache != nil {
		var cached Analysis
		hit, err := s.cache.Get(ctx, redis.AnalysisKey(symbol), &cached)
		if err != nil {
			s.logger.WithSymbol(symbol).WithError(err).Warn("Analysis cache read failed")
		}
		if hit {
			cached.Cached = true
			return &cached, nil
		}
	}

	a, _, err := s.analyze(ctx, symbol)
	return a, err
}

// AnalyzeFresh bypasses the cache
func (s *Service) AnalyzeFresh(ctx context.Context, symbol string) (*Analysis, error) {
	symbol = instrument.Normalize(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", contracts.ErrMalformedInput)
	}
	a, _, err := s.analyze(ctx, symbol)
	return a, err
}

func (s *Service) analyze(ctx context.Context, symbol string) (*Analysis, *contracts.MarketContext, error) {
	start := time.Now()
	log := s.logger.WithSymbol(symbol)

	mc, err := s.marketContext(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}

	scores := s.runner.EvaluateAll(ctx, symbol, mc)
	kz := s.sessions.CurrentWindow(mc.AsOf)

	result, err := s.aggregator.Aggregate(scores, kz)
	if err != nil {
		return nil, nil, fmt.Errorf("aggregate %s: %w", symbol, err)
	}
	result.Symbol = symbol

	validation, err := s.gate.Validate(result.PerLayer)
	if err != nil {
		return nil, nil, fmt.Errorf("validate %s: %w", symbol, err)
	}

	dir, long, short := s.aggregator.Direction(result.PerLayer)

	a := &Analysis{
		Symbol:      symbol,
		Confluence:  result,
		Validation:  validation,
		Quality:     confluence.Classify(result.CompositeScore),
		Direction:   dir,
		LongWeight:  long,
		ShortWeight: short,
		Layers:      result.PerLayer,
		KillZone:    kz,
		Duration:    time.Since(start),
	}

	s.metrics.CompositeScore(result.CompositeScore)
	log.WithFields(map[string]interface{}{
		"composite": result.CompositeScore,
		"passed":    validation.PassedLayers,
		"valid":     validation.Passed,
		"direction": dir,
		"killzone":  kz.CurrentZone,
	}).Debug("Analysis completed")

	if s.cache != nil {
		if err := s.cache.Set(ctx, redis.AnalysisKey(symbol), a, s.opts.CacheTTL); err != nil {
			log.WithError(err).Warn("Analysis cache write failed")
		}
	}

	return a, mc, nil
}

// marketContext loads candles and a quote. The execution timeframe is
// required; the higher timeframe and the quote degrade to empty.
func (s *Service) marketContext(ctx context.Context, symbol string) (*contracts.MarketContext, error) {
	mc := &contracts.MarketContext{Symbol: symbol, AsOf: s.now()}
	log := s.logger.WithSymbol(symbol)

	candles, err := s.market.Candles(ctx, symbol, s.opts.Timeframe, s.opts.CandleLimit)
	if err != nil {
		return nil, fmt.Errorf("load %s %s candles: %w", symbol, s.opts.Timeframe, err)
	}
	mc.Candles = candles

	htf, err := s.market.Candles(ctx, symbol, s.opts.HTFTimeframe, s.opts.CandleLimit)
	if err != nil {
		log.WithError(err).Warnf("%s candles unavailable", s.opts.HTFTimeframe)
	}
	mc.HTFCandles = htf

	quote, err := s.market.Quote(ctx, symbol)
	if err != nil {
		log.WithError(err).Warn("Quote unavailable, using last close")
	}
	mc.Quote = quote

	return mc, nil
}

// Generate runs a fresh analysis and tries to publish a signal. Gate
// failures come back as a Rejection with a nil error.
func (s *Service) Generate(ctx context.Context, symbol string) (*GenerateResult, error) {
	symbol = instrument.Normalize(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", contracts.ErrMalformedInput)
	}

	a, mc, err := s.analyze(ctx, symbol)
	if err != nil {
		return nil, err
	}

	req := signals.CreateRequest{
		Symbol:     symbol,
		Direction:  a.Direction,
		Confluence: a.Confluence,
		Validation: a.Validation,
		ConfigHash: s.opts.ConfigHash,
	}

	// 레벨 계산은 게이트를 통과할 수 있을 때만
	if a.Validation.Passed && a.Direction.Valid() && a.Confluence.CompositeScore >= s.signals.Config().PublishThreshold {
		levels, err := s.levels.Levels(ctx, symbol, a.Direction, mc)
		if err != nil {
			s.logger.WithSymbol(symbol).WithError(err).Warn("Trade levels unavailable")
		} else {
			req.Levels = levels
		}
	}

	sig, rej, err := s.signals.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create signal for %s: %w", symbol, err)
	}

	return &GenerateResult{Analysis: a, Signal: sig, Rejection: rej}, nil
}

// KillZone returns the session window at now
func (s *Service) KillZone() contracts.KillZoneWindow {
	return s.sessions.CurrentWindow(s.now())
}
