package instrument

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wonny/confluence/backend/internal/contracts"
)

// Kind 상품 분류
type Kind string

const (
	KindForex Kind = "forex"
	KindMetal Kind = "metal"
	KindIndex Kind = "index"
)

// Instrument describes pip arithmetic for one symbol
type Instrument struct {
	Symbol       string          `json:"symbol"`
	Kind         Kind            `json:"kind"`
	Base         string          `json:"base"`
	Quote        string          `json:"quote"`
	PipSize      decimal.Decimal `json:"pip_size"`
	ContractSize decimal.Decimal `json:"contract_size"` // units per standard lot
}

var (
	pipDefault = decimal.New(1, -4) // 0.0001
	pipJPY     = decimal.New(1, -2) // 0.01
	pipGold    = decimal.New(1, -1) // 0.1
	pipSilver  = decimal.New(1, -2) // 0.01
	pipIndex   = decimal.New(1, 0)  // 1

	lotForex  = decimal.NewFromInt(100_000)
	lotGold   = decimal.NewFromInt(100)
	lotSilver = decimal.NewFromInt(5_000)
	lotIndex  = decimal.NewFromInt(1)
)

var indices = map[string]string{
	"US30":   "USD",
	"US100":  "USD",
	"NAS100": "USD",
	"US500":  "USD",
	"SPX500": "USD",
	"GER40":  "EUR",
	"DE40":   "EUR",
	"UK100":  "GBP",
	"JP225":  "JPY",
}

// Normalize upper-cases and strips separators ("eur/usd" → "EURUSD")
func Normalize(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.NewReplacer("/", "", "_", "", "-", "", " ", "").Replace(s)
}

// Lookup resolves a symbol. Unknown six-letter symbols are treated as forex
// pairs; anything else falls back to the default pip size.
// ⭐ SSOT: 핍 크기 규칙은 여기서만
func Lookup(symbol string) Instrument {
	s := Normalize(symbol)

	if quote, ok := indices[s]; ok {
		return Instrument{Symbol: s, Kind: KindIndex, Base: s, Quote: quote, PipSize: pipIndex, ContractSize: lotIndex}
	}

	base, quote := split(s)
	inst := Instrument{Symbol: s, Kind: KindForex, Base: base, Quote: quote, PipSize: pipDefault, ContractSize: lotForex}

	switch {
	case base == "XAU":
		inst.Kind, inst.PipSize, inst.ContractSize = KindMetal, pipGold, lotGold
	case base == "XAG":
		inst.Kind, inst.PipSize, inst.ContractSize = KindMetal, pipSilver, lotSilver
	case quote == "JPY":
		inst.PipSize = pipJPY
	}
	return inst
}

func split(s string) (string, string) {
	if len(s) == 6 {
		return s[:3], s[3:]
	}
	return s, ""
}

// Currencies returns the currencies whose news moves the symbol
func Currencies(symbol string) []string {
	inst := Lookup(symbol)
	var out []string
	for _, c := range []string{inst.Base, inst.Quote} {
		if len(c) == 3 && c != "XAU" && c != "XAG" {
			out = append(out, c)
		}
	}
	if inst.Kind == KindMetal && len(out) == 0 {
		out = append(out, "USD")
	}
	return out
}

// Pips returns the signed pip distance from → to in the trade direction,
// rounded to a tenth of a pip. Long gains when price rises.
func Pips(symbol string, dir contracts.Direction, from, to float64) float64 {
	inst := Lookup(symbol)
	diff := decimal.NewFromFloat(to).Sub(decimal.NewFromFloat(from))
	if dir == contracts.DirectionShort {
		diff = diff.Neg()
	}
	pips, _ := diff.Div(inst.PipSize).Round(1).Float64()
	return pips
}

// Distance is the unsigned pip distance between two prices
func Distance(symbol string, a, b float64) float64 {
	inst := Lookup(symbol)
	d, _ := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs().Div(inst.PipSize).Round(1).Float64()
	return d
}

// RoundPrice rounds to a tenth of a pip (the usual quoting precision)
func RoundPrice(symbol string, price float64) float64 {
	inst := Lookup(symbol)
	places := -inst.PipSize.Exponent() + 1
	p, _ := decimal.NewFromFloat(price).Round(places).Float64()
	return p
}

// PipValuePerLot is the value of one pip on one standard lot in USD.
// Crosses without USD return the value in the quote currency.
func PipValuePerLot(symbol string, price float64) float64 {
	inst := Lookup(symbol)
	value := inst.PipSize.Mul(inst.ContractSize)

	if inst.Base == "USD" && price > 0 {
		value = value.Div(decimal.NewFromFloat(price))
	}
	v, _ := value.Round(4).Float64()
	return v
}
