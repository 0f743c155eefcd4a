package handlers

import (
	"context"
	"net/http"

	"github.com/wonny/confluence/backend/internal/performance"
	"github.com/wonny/confluence/backend/pkg/logger"
)

// PerformanceReporter builds closed-signal reports (*performance.Analyzer)
type PerformanceReporter interface {
	Analyze(ctx context.Context, period string) (*performance.Report, error)
}

// PerformanceHandler serves the performance view
type PerformanceHandler struct {
	reporter PerformanceReporter
	logger   *logger.Logger
}

// NewPerformanceHandler creates a new performance handler
func NewPerformanceHandler(reporter PerformanceReporter, log *logger.Logger) *PerformanceHandler {
	return &PerformanceHandler{reporter: reporter, logger: log}
}

// GetPerformance returns win rate, pips and drawdown for a period
// GET /api/performance?period=1M
func (h *PerformanceHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporter.Analyze(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.WithError(err).Error("Failed to build performance report")
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, report)
}
