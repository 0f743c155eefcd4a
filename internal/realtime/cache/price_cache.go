package cache

import (
	"sync"
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/instrument"
	"github.com/wonny/confluence/backend/internal/realtime"
	"github.com/wonny/confluence/backend/pkg/logger"
)

// PriceCache is an in-memory cache for real-time prices
// ⭐ SSOT: 실시간 가격 캐싱은 이 구조체에서만
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]contracts.PriceTick
	ttl    time.Duration
	logger *logger.Logger
	now    func() time.Time
}

// NewPriceCache creates a new price cache
func NewPriceCache(ttl time.Duration, log *logger.Logger) *PriceCache {
	if log == nil {
		log = logger.Nop()
	}
	return &PriceCache{
		prices: make(map[string]contracts.PriceTick),
		ttl:    ttl,
		logger: log,
		now:    time.Now,
	}
}

// WithClock replaces the wall clock (tests)
func (c *PriceCache) WithClock(now func() time.Time) *PriceCache {
	c.now = now
	return c
}

// Update stores tick when it is newer than the cached one. A tick with the
// same timestamp replaces the cached one only from a higher priority source.
func (c *PriceCache) Update(tick contracts.PriceTick) bool {
	tick.Symbol = instrument.Normalize(tick.Symbol)
	if tick.Symbol == "" || tick.Price <= 0 || tick.FromFuture(c.now()) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, exists := c.prices[tick.Symbol]
	if exists {
		// Don't accept older data
		if tick.At.Before(existing.At) {
			c.logger.WithFields(map[string]interface{}{
				"symbol":     tick.Symbol,
				"new_time":   tick.At,
				"old_time":   existing.At,
				"new_source": tick.Source,
				"old_source": existing.Source,
			}).Debug("Rejected older price data")
			return false
		}

		if tick.At.Equal(existing.At) {
			newSource := realtime.PriceSource(tick.Source)
			oldSource := realtime.PriceSource(existing.Source)
			if newSource.Priority() <= oldSource.Priority() {
				return false
			}
		}
	}

	c.prices[tick.Symbol] = tick
	return true
}

// Get retrieves price from cache
func (c *PriceCache) Get(symbol string) (realtime.CachedTick, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tick, exists := c.prices[instrument.Normalize(symbol)]
	if !exists {
		return realtime.CachedTick{}, false
	}
	return c.wrap(tick), true
}

// GetAll returns a snapshot of every cached price
func (c *PriceCache) GetAll() map[string]realtime.CachedTick {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]realtime.CachedTick, len(c.prices))
	for symbol, tick := range c.prices {
		result[symbol] = c.wrap(tick)
	}
	return result
}

func (c *PriceCache) wrap(tick contracts.PriceTick) realtime.CachedTick {
	return realtime.CachedTick{PriceTick: tick, IsStale: c.now().Sub(tick.At) > c.ttl}
}

// Len returns the number of prices in cache
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.prices)
}

// CleanStale removes stale prices from cache
func (c *PriceCache) CleanStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	count := 0
	for symbol, tick := range c.prices {
		if now.Sub(tick.At) > c.ttl {
			delete(c.prices, symbol)
			count++
		}
	}

	if count > 0 {
		c.logger.WithField("count", count).Info("Cleaned stale prices from cache")
	}
	return count
}

// Stats returns cache statistics
func (c *PriceCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{
		TotalCount: len(c.prices),
		BySource:   make(map[string]int),
	}

	now := c.now()
	for _, tick := range c.prices {
		if now.Sub(tick.At) > c.ttl {
			stats.StaleCount++
		}
		stats.BySource[tick.Source]++
	}
	stats.FreshCount = stats.TotalCount - stats.StaleCount

	return stats
}

// CacheStats represents cache statistics
type CacheStats struct {
	TotalCount int            `json:"total_count"`
	FreshCount int            `json:"fresh_count"`
	StaleCount int            `json:"stale_count"`
	BySource   map[string]int `json:"by_source"`
}
