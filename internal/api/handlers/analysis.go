package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/engine"
	"github.com/wonny/confluence/backend/pkg/logger"
)

// Analyzer is the read side of the engine (*engine.Service)
type Analyzer interface {
	Analyze(ctx context.Context, symbol string) (*engine.Analysis, error)
	AnalyzeFresh(ctx context.Context, symbol string) (*engine.Analysis, error)
	KillZone() contracts.KillZoneWindow
}

// AnalysisHandler serves layer analyses and the kill-zone window
// ⭐ SSOT: 분석 API 핸들러는 이 구조체에서만
type AnalysisHandler struct {
	engine Analyzer
	logger *logger.Logger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(eng Analyzer, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{engine: eng, logger: log}
}

// GetAnalysis returns the current confluence analysis for a symbol
// GET /api/analysis/{symbol}?fresh=true
func (h *AnalysisHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	fresh, _ := strconv.ParseBool(r.URL.Query().Get("fresh"))

	var (
		a   *engine.Analysis
		err error
	)
	if fresh {
		a, err = h.engine.AnalyzeFresh(r.Context(), symbol)
	} else {
		a, err = h.engine.Analyze(r.Context(), symbol)
	}
	if err != nil {
		h.logger.WithSymbol(symbol).WithError(err).Error("Failed to analyze symbol")
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, a)
}

// GetKillZone returns the current session window
// GET /api/killzone
func (h *AnalysisHandler) GetKillZone(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.KillZone())
}
