package realtime

import (
	"context"
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
)

// PriceSource represents the source of price data
type PriceSource string

const (
	SourceWebSocket PriceSource = "WS"
	SourceREST      PriceSource = "REST"
	SourceManual    PriceSource = "MANUAL" // ticks pushed through the API
)

// Priority returns priority for source (higher = better)
func (s PriceSource) Priority() int {
	switch s {
	case SourceWebSocket:
		return 3
	case SourceREST:
		return 2
	case SourceManual:
		return 1
	default:
		return 0
	}
}

// CachedTick is a price tick with its freshness at read time
type CachedTick struct {
	contracts.PriceTick
	IsStale bool `json:"is_stale"`
}

// TickHandler consumes accepted ticks
type TickHandler interface {
	OnTick(ctx context.Context, tick contracts.PriceTick)
}

// TickHandlerFunc adapts a function to TickHandler
type TickHandlerFunc func(ctx context.Context, tick contracts.PriceTick)

func (f TickHandlerFunc) OnTick(ctx context.Context, tick contracts.PriceTick) { f(ctx, tick) }

// Normalize fills Price from bid/ask and defaults the timestamp
func Normalize(tick contracts.PriceTick, now time.Time) contracts.PriceTick {
	if tick.Price <= 0 && tick.Bid > 0 && tick.Ask > 0 {
		tick.Price = (tick.Bid + tick.Ask) / 2
	}
	if tick.At.IsZero() {
		tick.At = now
	}
	return tick
}
