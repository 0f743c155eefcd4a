package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/confluence/backend/internal/contracts"
)

func TestLookup_PipSize(t *testing.T) {
	tests := []struct {
		symbol string
		pip    string
		kind   Kind
	}{
		{"EURUSD", "0.0001", KindForex},
		{"eur/usd", "0.0001", KindForex},
		{"USDJPY", "0.01", KindForex},
		{"GBPJPY", "0.01", KindForex},
		{"XAUUSD", "0.1", KindMetal},
		{"XAGUSD", "0.01", KindMetal},
		{"US30", "1", KindIndex},
		{"GER40", "1", KindIndex},
		{"SOMETHING", "0.0001", KindForex},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			inst := Lookup(tt.symbol)
			assert.Equal(t, tt.pip, inst.PipSize.String())
			assert.Equal(t, tt.kind, inst.Kind)
		})
	}
}

func TestPips(t *testing.T) {
	tests := []struct {
		name     string
		symbol   string
		dir      contracts.Direction
		from, to float64
		want     float64
	}{
		{"long eurusd gain", "EURUSD", contracts.DirectionLong, 1.1000, 1.1050, 50},
		{"long eurusd loss", "EURUSD", contracts.DirectionLong, 1.1000, 1.0975, -25},
		{"short eurusd gain", "EURUSD", contracts.DirectionShort, 1.1000, 1.0950, 50},
		{"short usdjpy loss", "USDJPY", contracts.DirectionShort, 150.00, 150.35, -35},
		{"gold", "XAUUSD", contracts.DirectionLong, 2000.0, 2012.5, 125},
		{"index", "US30", contracts.DirectionLong, 39000, 39120, 120},
		{"fractional pip", "EURUSD", contracts.DirectionLong, 1.10000, 1.10013, 1.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Pips(tt.symbol, tt.dir, tt.from, tt.to))
		})
	}
}

func TestDistanceAndRounding(t *testing.T) {
	assert.Equal(t, 15.0, Distance("GBPUSD", 1.2700, 1.2685))
	assert.Equal(t, 1.27003, RoundPrice("GBPUSD", 1.270031))
	assert.Equal(t, 150.123, RoundPrice("USDJPY", 150.12345))
}

func TestCurrencies(t *testing.T) {
	assert.Equal(t, []string{"EUR", "USD"}, Currencies("EURUSD"))
	assert.Equal(t, []string{"USD"}, Currencies("XAUUSD"))
	assert.Equal(t, []string{"USD"}, Currencies("US30"))
	assert.Equal(t, []string{"EUR"}, Currencies("GER40"))
}

func TestPipValuePerLot(t *testing.T) {
	assert.Equal(t, 10.0, PipValuePerLot("EURUSD", 1.10))
	assert.InDelta(t, 6.6667, PipValuePerLot("USDJPY", 150), 1e-4)
	assert.Equal(t, 10.0, PipValuePerLot("XAUUSD", 2000))
}
