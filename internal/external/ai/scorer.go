package ai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/pkg/breaker"
	"github.com/wonny/confluence/backend/pkg/httputil"
	"github.com/wonny/confluence/backend/pkg/logger"
)

// Scorer calls the AI confidence service
// ⭐ SSOT: AI 스코어러 호출은 이 클라이언트에서만
type Scorer struct {
	httpClient *httputil.Client
	baseURL    string
	model      string
	breaker    *breaker.Breaker
	local      *rate.Limiter
	logger     *logger.Logger
}

type scoreRequest struct {
	Model  string `json:"model"`
	Symbol string `json:"symbol"`
	Prompt string `json:"prompt"`
}

type scoreResponse struct {
	Confidence *float64 `json:"confidence"`
	Direction  string   `json:"direction"`
	Summary    string   `json:"summary"`
}

// NewScorer creates a scorer. The shared Redis rate limit, when enabled,
// is configured on httpClient; cb may be nil.
func NewScorer(httpClient *httputil.Client, baseURL, model string, cb *breaker.Breaker, log *logger.Logger) *Scorer {
	if log == nil {
		log = logger.Nop()
	}
	return &Scorer{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		breaker:    cb,
		logger:     log,
	}
}

// WithLocalLimit throttles calls in-process (used when Redis is disabled)
func (s *Scorer) WithLocalLimit(perMinute int) *Scorer {
	if perMinute > 0 {
		s.local = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
	return s
}

var _ contracts.AIScorer = (*Scorer)(nil)

// Score asks for a 0..100 confidence on summary
func (s *Scorer) Score(ctx context.Context, symbol, summary string) (*contracts.AIVerdict, error) {
	if s.local != nil {
		if err := s.local.Wait(ctx); err != nil {
			return nil, fmt.Errorf("ai rate limit: %w", err)
		}
	}

	req := scoreRequest{Model: s.model, Symbol: symbol, Prompt: summary}
	call := func() (any, error) {
		var resp scoreResponse
		if err := s.httpClient.PostJSONInto(ctx, s.baseURL+"/score", req, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	}

	var out any
	var err error
	if s.breaker != nil {
		out, err = s.breaker.Execute(call)
	} else {
		out, err = call()
	}
	if err != nil {
		s.logger.WithSymbol(symbol).WithError(err).Warn("AI scorer call failed")
		return nil, err
	}

	resp := out.(*scoreResponse)
	if resp.Confidence == nil || math.IsNaN(*resp.Confidence) || *resp.Confidence < 0 || *resp.Confidence > 100 {
		return nil, fmt.Errorf("%w: ai confidence out of range", contracts.ErrMalformedInput)
	}

	dir := contracts.Direction(strings.ToLower(strings.TrimSpace(resp.Direction)))
	switch dir {
	case "buy", "bullish":
		dir = contracts.DirectionLong
	case "sell", "bearish":
		dir = contracts.DirectionShort
	}
	if !dir.Valid() {
		dir = contracts.DirectionNone
	}

	s.logger.WithFields(map[string]interface{}{
		"symbol":     symbol,
		"confidence": *resp.Confidence,
		"direction":  dir,
	}).Debug("AI verdict")

	return &contracts.AIVerdict{
		Confidence: *resp.Confidence,
		Direction:  dir,
		Summary:    strings.TrimSpace(resp.Summary),
	}, nil
}
