package feed

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/realtime"
	"github.com/wonny/confluence/backend/internal/realtime/cache"
	"github.com/wonny/confluence/backend/pkg/logger"
	"github.com/wonny/confluence/backend/pkg/metrics"
	"github.com/wonny/confluence/backend/pkg/redis"
)

const snapshotInterval = 5 * time.Second

// Source is one long-running price source
type Source interface {
	Name() string
	Run(ctx context.Context) error
}

// Publisher accepts ticks from sources
type Publisher interface {
	Publish(ctx context.Context, tick contracts.PriceTick) bool
}

// SnapshotStore receives fresh quotes for other processes (*redis.Cache)
type SnapshotStore interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Manager orchestrates all real-time price feeds
// ⭐ SSOT: 실시간 가격 피드 조율은 이 매니저에서만
type Manager struct {
	cache    *cache.PriceCache
	handler  realtime.TickHandler
	sources  []Source
	snapshot SnapshotStore
	metrics  *metrics.Recorder
	logger   *logger.Logger
	now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a feed manager. handler receives every accepted tick.
func NewManager(priceCache *cache.PriceCache, handler realtime.TickHandler, log *logger.Logger, rec *metrics.Recorder) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		cache:   priceCache,
		handler: handler,
		metrics: rec,
		logger:  log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Attach adds sources; call before Start
func (m *Manager) Attach(sources ...Source) {
	m.sources = append(m.sources, sources...)
}

// WithSnapshot mirrors fresh quotes into store
func (m *Manager) WithSnapshot(store SnapshotStore) *Manager {
	m.snapshot = store
	return m
}

// Publish normalizes a tick, keeps it if it is the newest for its symbol
// and forwards it to the handler. Future-dated ticks are dropped.
func (m *Manager) Publish(ctx context.Context, tick contracts.PriceTick) bool {
	now := m.now()
	tick = realtime.Normalize(tick, now)
	if tick.FromFuture(now) {
		m.logger.WithFields(map[string]interface{}{
			"symbol": tick.Symbol,
			"source": tick.Source,
			"at":     tick.At,
		}).Warn("Rejected future-dated tick")
		return false
	}
	if !m.cache.Update(tick) {
		return false
	}
	m.metrics.FeedTick(tick.Source)

	if m.handler != nil {
		m.handler.OnTick(ctx, tick)
	}
	return true
}

// Start runs every source until Stop. A source returning an error is
// logged; the others keep running.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.logger.WithField("sources", len(m.sources)).Info("Starting feed manager")

	for _, src := range m.sources {
		m.wg.Add(1)
		go func(src Source) {
			defer m.wg.Done()
			if err := src.Run(ctx); err != nil {
				m.logger.WithError(err).WithField("source", src.Name()).Error("Price source stopped")
			}
		}(src)
	}

	if m.snapshot != nil {
		m.wg.Add(1)
		go m.snapshotLoop(ctx)
	}
}

// Stop cancels every source and waits for them
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("Feed manager stopped")
}

// snapshotLoop periodically mirrors fresh prices into the snapshot store
func (m *Manager) snapshotLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SyncSnapshot(ctx)
		}
	}
}

// SyncSnapshot writes every fresh cached price to the snapshot store
func (m *Manager) SyncSnapshot(ctx context.Context) int {
	if m.snapshot == nil {
		return 0
	}

	synced := 0
	for symbol, tick := range m.cache.GetAll() {
		// Only sync non-stale prices
		if tick.IsStale {
			continue
		}
		q := contracts.Quote{Symbol: symbol, Bid: tick.Bid, Ask: tick.Ask, Time: tick.At}
		if q.Bid <= 0 || q.Ask <= 0 {
			q.Bid, q.Ask = tick.Price, tick.Price
		}
		if err := m.snapshot.Set(ctx, redis.QuoteKey(symbol), q, redis.TTLQuote); err != nil {
			m.logger.WithSymbol(symbol).WithError(err).Warn("Failed to store quote snapshot")
			continue
		}
		synced++
	}
	return synced
}

// Stats returns statistics for the feed
func (m *Manager) Stats() Stats {
	names := make([]string, 0, len(m.sources))
	for _, s := range m.sources {
		names = append(names, s.Name())
	}
	return Stats{Sources: names, Cache: m.cache.Stats()}
}

// Stats represents statistics for the feed manager
type Stats struct {
	Sources []string         `json:"sources"`
	Cache   cache.CacheStats `json:"cache"`
}
