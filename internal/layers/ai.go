package layers

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/wonny/confluence/backend/internal/contracts"
)

// DefaultAIPassConfidence: confidence must be strictly above this to pass
const DefaultAIPassConfidence = 70.0

// AIEvaluator asks the AI scorer for a confidence on a text summary of the
// market context
type AIEvaluator struct {
	scorer    contracts.AIScorer
	threshold float64
}

// NewAIEvaluator creates the AI-confidence layer
func NewAIEvaluator(scorer contracts.AIScorer, threshold float64) *AIEvaluator {
	return &AIEvaluator{scorer: scorer, threshold: threshold}
}

func (e *AIEvaluator) ID() contracts.LayerID   { return contracts.LayerAI }
func (e *AIEvaluator) Key() contracts.LayerKey { return contracts.LayerAI.Key() }

func (e *AIEvaluator) Evaluate(ctx context.Context, symbol string, mc *contracts.MarketContext) (contracts.LayerScore, error) {
	verdict, err := e.scorer.Score(ctx, symbol, Summarize(symbol, mc))
	if err != nil {
		return contracts.LayerScore{}, fmt.Errorf("ai scorer: %w", err)
	}
	if verdict == nil || math.IsNaN(verdict.Confidence) {
		return contracts.LayerScore{}, fmt.Errorf("ai scorer returned no confidence")
	}

	conf := clampf(verdict.Confidence, 0, 100)
	bias := verdict.Direction
	if !bias.Valid() {
		bias = contracts.DirectionNone
	}

	summary := strings.TrimSpace(verdict.Summary)
	if summary == "" {
		summary = "no commentary"
	}
	return contracts.LayerScore{
		LayerID:     e.ID(),
		Key:         e.Key(),
		Score:       int(math.Round(conf)),
		Passed:      conf > e.threshold,
		Rationale:   fmt.Sprintf("AI confidence %.0f%%: %s", conf, summary),
		Bias:        bias,
		EvaluatedAt: asOf(mc),
	}, nil
}

// Summarize renders the market context as the scorer's prompt input
func Summarize(symbol string, mc *contracts.MarketContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Instrument: %s\n", symbol)
	if mc == nil || len(mc.Candles) == 0 {
		b.WriteString("No price history available.\n")
		return b.String()
	}

	v := closes(mc.Candles)
	last := v[len(v)-1]
	fmt.Fprintf(&b, "As of: %s\n", asOf(mc).Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Last close: %.5f\n", last)
	if len(v) > 24 {
		fmt.Fprintf(&b, "24-bar change: %+.3f%%\n", (last/v[len(v)-25]-1)*100)
	}
	if len(v) >= 15 {
		fmt.Fprintf(&b, "RSI14: %.1f\n", rsi(v, 14))
	}
	if len(v) >= 50 {
		fmt.Fprintf(&b, "EMA20: %.5f, EMA50: %.5f\n", ema(v, 20), ema(v, 50))
	}
	if a := atr(mc.Candles, 14); a > 0 {
		fmt.Fprintf(&b, "ATR14: %.5f\n", a)
	}
	if mc.Quote != nil {
		fmt.Fprintf(&b, "Quote: bid %.5f ask %.5f\n", mc.Quote.Bid, mc.Quote.Ask)
	}
	b.WriteString("Answer with a confidence 0-100 that a trade in the dominant direction reaches its first target, the direction (long/short), and one sentence of reasoning.\n")
	return b.String()
}
