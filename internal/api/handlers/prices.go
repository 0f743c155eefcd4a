package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/realtime"
	"github.com/wonny/confluence/backend/internal/realtime/feed"
	"github.com/wonny/confluence/backend/pkg/logger"
)

// TickPublisher accepts ticks into the feed (*feed.Manager)
type TickPublisher interface {
	Publish(ctx context.Context, tick contracts.PriceTick) bool
	Stats() feed.Stats
}

// PriceHandler accepts manual price ticks and reports feed state
type PriceHandler struct {
	feed   TickPublisher
	logger *logger.Logger
}

// NewPriceHandler creates a new price handler
func NewPriceHandler(pub TickPublisher, log *logger.Logger) *PriceHandler {
	return &PriceHandler{feed: pub, logger: log}
}

// PriceRequest is one manually submitted tick
type PriceRequest struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Price  float64   `json:"price"`
	At     time.Time `json:"at"`
}

// Post pushes a tick through the feed, evaluating open signals of the symbol
// POST /api/prices
func (h *PriceHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Symbol == "" || (req.Price <= 0 && (req.Bid <= 0 || req.Ask <= 0)) {
		respondError(w, http.StatusBadRequest, "symbol and a positive price (or bid and ask) are required")
		return
	}
	if req.At.After(time.Now().UTC().Add(contracts.MaxTickSkew)) {
		respondError(w, http.StatusBadRequest, "at is in the future")
		return
	}

	accepted := h.feed.Publish(r.Context(), contracts.PriceTick{
		Symbol: req.Symbol,
		Bid:    req.Bid,
		Ask:    req.Ask,
		Price:  req.Price,
		Source: string(realtime.SourceManual),
		At:     req.At,
	})

	status := http.StatusAccepted
	if !accepted {
		status = http.StatusConflict
	}
	respondJSON(w, status, map[string]interface{}{
		"accepted": accepted,
	})
}

// GetStats returns feed sources and price cache statistics
// GET /api/prices/stats
func (h *PriceHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.feed.Stats())
}
