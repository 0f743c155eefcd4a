package layers

import (
	"context"
	"fmt"

	"github.com/wonny/confluence/backend/internal/contracts"
)

// StructureEvaluator classifies swing structure (HH/HL vs LH/LL) and
// checks for a break of the last swing
type StructureEvaluator struct {
	passScore int
	width     int
}

// NewStructureEvaluator creates the market-structure layer
func NewStructureEvaluator(passScore int) *StructureEvaluator {
	return &StructureEvaluator{passScore: passScore, width: 2}
}

func (e *StructureEvaluator) ID() contracts.LayerID   { return contracts.LayerStructure }
func (e *StructureEvaluator) Key() contracts.LayerKey { return contracts.LayerStructure.Key() }

func (e *StructureEvaluator) Evaluate(_ context.Context, _ string, mc *contracts.MarketContext) (contracts.LayerScore, error) {
	cs := mc.Candles
	if err := needCandles(cs, 30, "structure"); err != nil {
		return contracts.LayerScore{}, err
	}
	if len(cs) > 120 {
		cs = cs[len(cs)-120:]
	}

	highs, lows := swings(cs, e.width)
	if len(highs) < 2 || len(lows) < 2 {
		return contracts.LayerScore{}, fmt.Errorf("%w: structure needs two swing highs and lows", ErrInsufficientData)
	}

	h1, h2 := highs[len(highs)-2], highs[len(highs)-1]
	l1, l2 := lows[len(lows)-2], lows[len(lows)-1]

	var structure float64
	label := "ranging"
	switch {
	case h2.price > h1.price && l2.price > l1.price:
		structure, label = 1, "HH/HL"
	case h2.price < h1.price && l2.price < l1.price:
		structure, label = -1, "LH/LL"
	case h2.price > h1.price && l2.price >= l1.price:
		structure, label = 0.5, "HH/EL"
	case h2.price <= h1.price && l2.price > l1.price:
		structure, label = 0.3, "contracting, higher low"
	case h2.price < h1.price && l2.price <= l1.price:
		structure, label = -0.5, "LH/EL"
	case h2.price >= h1.price && l2.price < l1.price:
		structure, label = -0.3, "expanding, lower low"
	}

	last := cs[len(cs)-1].Close
	var bos float64
	bosLabel := "no break"
	switch {
	case last > h2.price:
		bos, bosLabel = 1, fmt.Sprintf("close above swing high %.5g", h2.price)
	case last < l2.price:
		bos, bosLabel = -1, fmt.Sprintf("close below swing low %.5g", l2.price)
	}

	strength := 0.7*structure + 0.3*bos
	rationale := fmt.Sprintf("Structure %s: %s, %s", biasWord(strength), label, bosLabel)
	return directional(e.ID(), strength, e.passScore, rationale, asOf(mc)), nil
}
