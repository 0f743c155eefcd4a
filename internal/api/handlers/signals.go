package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/engine"
	"github.com/wonny/confluence/backend/internal/signals"
	"github.com/wonny/confluence/backend/pkg/logger"
)

// Generator creates signals (*engine.Service)
type Generator interface {
	Generate(ctx context.Context, symbol string) (*engine.GenerateResult, error)
}

// SignalReader is the query side of signals.Manager
type SignalReader interface {
	Get(ctx context.Context, id string) (*contracts.Signal, error)
	List(ctx context.Context, f signals.Filter) ([]*contracts.Signal, error)
	Events(ctx context.Context, id string) ([]contracts.SignalEvent, error)
}

// SettingsReader resolves per-user settings (*settings.Service)
type SettingsReader interface {
	Get(ctx context.Context, userID string) (contracts.UserSettings, error)
}

// SizeFunc sizes a position for one user
type SizeFunc func(sig *contracts.Signal, user contracts.UserSettings) contracts.PositionSize

// SignalHandler handles signal generation and queries
// ⭐ SSOT: 시그널 API 핸들러는 이 구조체에서만
type SignalHandler struct {
	engine   Generator
	signals  SignalReader
	settings SettingsReader
	size     SizeFunc
	logger   *logger.Logger
}

// NewSignalHandler creates a new signal handler
func NewSignalHandler(eng Generator, sigs SignalReader, st SettingsReader, size SizeFunc, log *logger.Logger) *SignalHandler {
	return &SignalHandler{
		engine:   eng,
		signals:  sigs,
		settings: st,
		size:     size,
		logger:   log,
	}
}

// GenerateRequest is the body of POST /api/signals
type GenerateRequest struct {
	Symbol string `json:"symbol"`
	Action string `json:"action"`
}

// Generate runs a generate cycle for the path symbol
// POST /api/signals/{symbol}/generate
func (h *SignalHandler) Generate(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, mux.Vars(r)["symbol"])
}

// Action handles {symbol, action:"generate"}
// POST /api/signals
func (h *SignalHandler) Action(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Action != "generate" {
		respondError(w, http.StatusBadRequest, "unsupported action: "+req.Action)
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	h.generate(w, r, req.Symbol)
}

// generate answers 201 with the signal, or 200 with the rejection.
// Unmet conditions are never a server error.
func (h *SignalHandler) generate(w http.ResponseWriter, r *http.Request, symbol string) {
	res, err := h.engine.Generate(r.Context(), symbol)
	if err != nil {
		h.logger.WithSymbol(symbol).WithError(err).Error("Failed to generate signal")
		respondError(w, statusFor(err), err.Error())
		return
	}

	if res.Signal != nil {
		respondJSON(w, http.StatusCreated, map[string]interface{}{
			"signal":   res.Signal,
			"analysis": res.Analysis,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rejection": res.Rejection,
		"analysis":  res.Analysis,
	})
}

// List returns signals, optionally filtered
// GET /api/signals?status=active&symbol=EURUSD&open=true&limit=50
func (h *SignalHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := signals.Filter{Symbol: q.Get("symbol")}

	if s := q.Get("status"); s != "" {
		f.Status = contracts.SignalStatus(strings.ToLower(s))
		if !f.Status.Valid() {
			respondError(w, http.StatusBadRequest, "unknown status: "+s)
			return
		}
	}
	if s := q.Get("open"); s != "" {
		open, err := strconv.ParseBool(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "open must be a boolean")
			return
		}
		f.Open = open
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	list, err := h.signals.List(r.Context(), f)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list signals")
		respondError(w, statusFor(err), "Failed to retrieve signals")
		return
	}
	if list == nil {
		list = []*contracts.Signal{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"signals": list,
		"count":   len(list),
	})
}

// Get returns one signal with its transition log
// GET /api/signals/{id}
func (h *SignalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sig, err := h.signals.Get(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, id, err)
		return
	}

	events, err := h.signals.Events(r.Context(), id)
	if err != nil {
		h.logger.WithSignal(id, sig.Symbol).WithError(err).Warn("Failed to load signal events")
		events = nil
	}
	if events == nil {
		events = []contracts.SignalEvent{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"signal": sig,
		"events": events,
	})
}

// Size returns a position size for the signal and user
// GET /api/signals/{id}/size?user=alice
func (h *SignalHandler) Size(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sig, err := h.signals.Get(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, id, err)
		return
	}

	user := contracts.DefaultUserSettings("")
	if userID := r.URL.Query().Get("user"); userID != "" {
		user, err = h.settings.Get(r.Context(), userID)
		if err != nil {
			h.logger.WithField("user_id", userID).WithError(err).Error("Failed to load settings")
			respondError(w, statusFor(err), err.Error())
			return
		}
	}

	respondJSON(w, http.StatusOK, h.size(sig, user))
}

func (h *SignalHandler) respondLookupError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "signal not found: "+id)
		return
	}
	h.logger.WithField("signal_id", id).WithError(err).Error("Failed to get signal")
	respondError(w, http.StatusInternalServerError, "Failed to retrieve signal")
}
