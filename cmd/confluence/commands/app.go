package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/wonny/confluence/backend/internal/api"
	"github.com/wonny/confluence/backend/internal/api/handlers"
	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/engine"
	"github.com/wonny/confluence/backend/internal/engineconfig"
	"github.com/wonny/confluence/backend/internal/external/ai"
	"github.com/wonny/confluence/backend/internal/external/calendar"
	"github.com/wonny/confluence/backend/internal/external/marketdata"
	"github.com/wonny/confluence/backend/internal/instrument"
	"github.com/wonny/confluence/backend/internal/layers"
	"github.com/wonny/confluence/backend/internal/performance"
	"github.com/wonny/confluence/backend/internal/realtime"
	pricecache "github.com/wonny/confluence/backend/internal/realtime/cache"
	"github.com/wonny/confluence/backend/internal/realtime/feed"
	"github.com/wonny/confluence/backend/internal/settings"
	"github.com/wonny/confluence/backend/internal/signals"
	"github.com/wonny/confluence/backend/pkg/breaker"
	"github.com/wonny/confluence/backend/pkg/config"
	"github.com/wonny/confluence/backend/pkg/database"
	"github.com/wonny/confluence/backend/pkg/httputil"
	"github.com/wonny/confluence/backend/pkg/logger"
	"github.com/wonny/confluence/backend/pkg/metrics"
	"github.com/wonny/confluence/backend/pkg/redis"
)

const (
	redisPrefix   = "confluence"
	priceStaleTTL = 60 * time.Second
)

// app is the wired dependency graph shared by every command
type app struct {
	cfg        *config.Config
	engineCfg  *engineconfig.Config
	configHash string
	log        *logger.Logger
	metrics    *metrics.Recorder

	db      *database.DB // nil with the memory store
	redis   *redis.Client
	cache   *redis.Cache
	locker  *redis.Locker
	limiter *redis.RateLimiter

	market   *marketdata.Client
	calendar *calendar.Client

	signals     *signals.Manager
	settings    *settings.Service
	performance *performance.Analyzer
	engine      *engine.Service
	scanner     *engine.Scanner

	prices *pricecache.PriceCache
	feed   *feed.Manager
}

// loadConfig applies CLI overrides and reads the environment
func loadConfig() (*config.Config, error) {
	if storeFlag != "" {
		os.Setenv("SIGNAL_STORE", storeFlag)
	}
	if engineConfig != "" {
		os.Setenv("ENGINE_CONFIG", engineConfig)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
		cfg.LogFormat = "console"
	}
	return cfg, nil
}

// newApp builds every component. Call close when done.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg)

	engineCfg, err := engineconfig.Resolve(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	for _, w := range engineconfig.Warn(engineCfg) {
		log.WithField("code", w.Code).Warn(w.Message)
	}
	hash, err := engineconfig.Hash(engineCfg)
	if err != nil {
		return nil, fmt.Errorf("engine config hash: %w", err)
	}

	a := &app{
		cfg:        cfg,
		engineCfg:  engineCfg,
		configHash: hash,
		log:        log,
	}
	if cfg.MetricsEnabled {
		a.metrics = metrics.New()
	}

	// 1. Storage
	if err := a.connectStores(ctx); err != nil {
		a.close()
		return nil, err
	}

	// 2. External collaborators
	a.market = marketdata.NewClient(
		httputil.New(log).
			WithHeader("X-API-Key", cfg.MarketData.APIKey).
			WithRateLimiter(a.limiter, redis.MarketDataRateLimit),
		cfg.MarketData.BaseURL, a.cache, log)

	deps := layers.Deps{
		PassScore:        engineCfg.Layers.PassScore,
		AIPassConfidence: engineCfg.Layers.AIPassConfidence,
		NewsBlackout:     engineCfg.Layers.NewsBlackout,
		Logger:           log,
	}
	if cfg.Calendar.URL != "" {
		a.calendar = calendar.NewClient(
			httputil.New(log).
				WithHeader("User-Agent", "Mozilla/5.0 (compatible; confluence/1.0)").
				WithRateLimiter(a.limiter, redis.CalendarRateLimit),
			cfg.Calendar.URL, a.cache, log)
		deps.Calendar = a.calendar
	}
	if cfg.AI.BaseURL != "" {
		aiHTTP := httputil.NewWithTimeout(log, engineCfg.Scan.LayerTimeout).
			DisableRetry().
			WithHeader("Authorization", bearer(cfg.AI.APIKey))
		scorer := ai.NewScorer(aiHTTP, cfg.AI.BaseURL, cfg.AI.Model, breaker.New("ai_scorer", breaker.Settings{}, log), log)
		if a.redis.Enabled() {
			aiHTTP.WithRateLimiter(a.limiter, redis.AIScorerRateLimit(cfg.AI.RateLimit))
		} else {
			scorer.WithLocalLimit(cfg.AI.RateLimit)
		}
		deps.AIScorer = scorer
	}
	if cfg.Analysis.BaseURL != "" {
		deps.AnalysisURL = cfg.Analysis.BaseURL
		deps.AnalysisClient = httputil.NewWithTimeout(log, engineCfg.Scan.LayerTimeout).
			DisableRetry().
			WithHeader("X-API-Key", cfg.Analysis.APIKey).
			WithRateLimiter(a.limiter, redis.AnalysisRateLimit)
		deps.AnalysisBreaker = breaker.New("analysis_service", breaker.Settings{}, log)
	}

	// 3. Pipeline
	runner, err := layers.NewRunner(layers.DefaultSet(deps), engineCfg.Scan.LayerTimeout, log, a.metrics)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("layer runner: %w", err)
	}
	sessions, err := engineCfg.Scheduler()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("kill-zone sessions: %w", err)
	}
	aggregator, err := engineCfg.Aggregator()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("aggregator: %w", err)
	}
	gate, err := engineCfg.Gate()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("gate: %w", err)
	}

	a.engine = engine.NewService(a.market, runner, sessions, aggregator, gate,
		atrLevels(engineCfg.Levels), a.signals, a.cache,
		engine.Options{
			Timeframe:    engineCfg.Layers.Timeframe,
			HTFTimeframe: engineCfg.Layers.HTFTimeframe,
			CandleLimit:  engineCfg.Layers.CandleLimit,
			CacheTTL:     cfg.Engine.AnalysisTTL,
			ConfigHash:   hash,
		}, log, a.metrics)
	a.scanner = engine.NewScanner(a.engine, a.locker, log, a.metrics)
	a.performance = performance.NewAnalyzer(a.signals, log)

	// 4. Realtime (sources are attached by the commands that run them)
	a.prices = pricecache.NewPriceCache(priceStaleTTL, log)
	a.feed = feed.NewManager(a.prices, realtime.NewExitMonitor(a.signals, log), log, a.metrics).
		WithSnapshot(a.cache)

	log.WithFields(map[string]interface{}{
		"store":       cfg.Engine.Store,
		"redis":       a.redis.Enabled(),
		"config_hash": hash[:12],
		"symbols":     engineCfg.NormalizedSymbols(),
	}).Info("Engine initialized")

	return a, nil
}

func (a *app) connectStores(ctx context.Context) error {
	rc, err := redis.New(a.cfg)
	if err != nil {
		a.log.WithError(err).Warn("Redis unavailable, continuing without shared cache")
		rc = redis.Disabled()
	}
	a.redis = rc
	a.cache = redis.NewCache(rc, redisPrefix)
	a.locker = redis.NewLocker(rc, redisPrefix)
	a.limiter = redis.NewRateLimiter(rc, redisPrefix)

	var (
		sigRepo signals.Repository
		setRepo settings.Repository
	)
	switch a.cfg.Engine.Store {
	case "memory":
		sigRepo = signals.NewMemoryRepository()
		setRepo = settings.NewMemoryRepository()
	default:
		db, err := database.New(a.cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		sigRepo = signals.NewPostgresRepository(db.Pool)
		setRepo = settings.NewPostgresRepository(db.Pool)
	}

	a.signals = signals.NewManager(sigRepo, a.engineCfg.SignalsConfig(), a.log, a.metrics)
	a.settings = settings.NewService(setRepo, a.log)

	if err := a.signals.SyncOpenGauge(ctx); err != nil {
		a.log.WithError(err).Warn("Failed to sync open-signal gauge")
	}
	return nil
}

// attachFeeds registers the configured price sources on the feed manager
func (a *app) attachFeeds() {
	symbols := a.engineCfg.NormalizedSymbols()

	if a.cfg.Feed.WebSocketURL != "" {
		a.feed.Attach(feed.NewWebSocketFeed(a.cfg.Feed.WebSocketURL, symbols, a.feed, a.log))
	}
	if a.cfg.Feed.PollInterval > 0 && a.cfg.MarketData.BaseURL != "" {
		// own client without the snapshot read, so the poller never sees its own quotes
		quotes := marketdata.NewClient(
			httputil.New(a.log).DisableRetry().WithHeader("X-API-Key", a.cfg.MarketData.APIKey),
			a.cfg.MarketData.BaseURL, nil, a.log)
		a.feed.Attach(feed.NewRESTPoller(quotes, a.watchedSymbols, a.cfg.Feed.PollInterval,
			a.cfg.Feed.PollRate, a.feed, a.log, a.metrics))
	}
}

// watchedSymbols returns the symbols that have open signals
func (a *app) watchedSymbols(ctx context.Context) []string {
	open, err := a.signals.List(ctx, signals.Filter{Open: true})
	if err != nil {
		a.log.WithError(err).Warn("Failed to list open signals for polling")
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, s := range open {
		if !seen[s.Symbol] {
			seen[s.Symbol] = true
			out = append(out, s.Symbol)
		}
	}
	return out
}

// router builds the HTTP API
func (a *app) router() http.Handler {
	h := api.Handlers{
		Analysis:    handlers.NewAnalysisHandler(a.engine, a.log),
		Signals:     handlers.NewSignalHandler(a.engine, a.signals, a.settings, settings.PositionSize, a.log),
		Performance: handlers.NewPerformanceHandler(a.performance, a.log),
		Settings:    handlers.NewSettingsHandler(a.settings, a.log),
		Prices:      handlers.NewPriceHandler(a.feed, a.log),
	}
	return api.NewRouter(h, a.health, a.metrics, a.log)
}

func (a *app) health(r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if a.db != nil {
		if err := a.db.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if err := a.redis.Ping(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

func atrLevels(l engineconfig.Levels) engine.ATRLevels {
	p := engine.DefaultATRLevels()
	if l.ATRPeriod > 0 {
		p.Period = l.ATRPeriod
	}
	if l.StopATR > 0 {
		p.StopATR = l.StopATR
	}
	for i := 0; i < len(l.TargetsATR) && i < len(p.TargetsATR); i++ {
		p.TargetsATR[i] = l.TargetsATR[i]
	}
	return p
}

func bearer(key string) string {
	if key == "" {
		return ""
	}
	return "Bearer " + key
}

// normalizeArg canonicalizes a symbol argument
func normalizeArg(s string) string {
	return instrument.Normalize(s)
}

var _ contracts.MarketDataProvider = (*marketdata.Client)(nil)
