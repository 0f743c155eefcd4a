package layers

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/confluence/backend/internal/contracts"
)

// VSAEvaluator compares the latest bars' spread and volume with their
// recent averages (effort vs result)
type VSAEvaluator struct {
	passScore int
	lookback  int
}

// NewVSAEvaluator creates the volume-spread layer
func NewVSAEvaluator(passScore int) *VSAEvaluator {
	return &VSAEvaluator{passScore: passScore, lookback: 20}
}

func (e *VSAEvaluator) ID() contracts.LayerID   { return contracts.LayerVSA }
func (e *VSAEvaluator) Key() contracts.LayerKey { return contracts.LayerVSA.Key() }

func (e *VSAEvaluator) Evaluate(_ context.Context, _ string, mc *contracts.MarketContext) (contracts.LayerScore, error) {
	cs := mc.Candles
	if err := needCandles(cs, e.lookback+3, "vsa"); err != nil {
		return contracts.LayerScore{}, err
	}

	window := cs[len(cs)-e.lookback-3 : len(cs)-3]
	var avgSpread, avgVolume float64
	for _, c := range window {
		avgSpread += c.High - c.Low
		avgVolume += c.Volume
	}
	avgSpread /= float64(len(window))
	avgVolume /= float64(len(window))
	if avgVolume == 0 || avgSpread == 0 {
		return contracts.LayerScore{}, fmt.Errorf("%w: vsa needs volume and range", ErrInsufficientData)
	}

	// newest bar counts most
	weights := []float64{0.2, 0.3, 0.5}
	var strength float64
	var notes []string
	for i, c := range cs[len(cs)-3:] {
		spread := (c.High - c.Low) / avgSpread
		volume := c.Volume / avgVolume
		up := c.Close > c.Open
		down := c.Close < c.Open

		var s float64
		switch {
		case volume >= 1.5 && spread >= 1.2 && up:
			s, notes = 1, append(notes, "demand bar")
		case volume >= 1.5 && spread >= 1.2 && down:
			s, notes = -1, append(notes, "supply bar")
		case volume >= 1.5 && spread < 0.8 && up:
			// effort without result on an up bar
			s, notes = -0.5, append(notes, "upthrust absorption")
		case volume >= 1.5 && spread < 0.8 && down:
			s, notes = 0.5, append(notes, "stopping volume")
		case volume < 0.7 && spread < 0.8 && down:
			s, notes = 0.4, append(notes, "no supply")
		case volume < 0.7 && spread < 0.8 && up:
			s, notes = -0.4, append(notes, "no demand")
		}
		strength += weights[i] * s
	}

	if len(notes) == 0 {
		notes = append(notes, "no volume anomaly")
	}
	rationale := fmt.Sprintf("VSA %s: %s", biasWord(strength), strings.Join(notes, ", "))
	return directional(e.ID(), strength, e.passScore, rationale, asOf(mc)), nil
}
