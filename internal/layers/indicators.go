package layers

import (
	"math"

	"github.com/wonny/confluence/backend/internal/contracts"
)

// Candle series are oldest first throughout this file.

func closes(cs []contracts.Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}

// sma of the last period values
func sma(v []float64, period int) float64 {
	if period <= 0 || len(v) < period {
		return 0
	}
	var sum float64
	for _, x := range v[len(v)-period:] {
		sum += x
	}
	return sum / float64(period)
}

// emaSeries seeds with the SMA of the first period values
func emaSeries(v []float64, period int) []float64 {
	if period <= 0 || len(v) < period {
		return nil
	}
	out := make([]float64, len(v))
	var sum float64
	for i := 0; i < period; i++ {
		sum += v[i]
	}
	out[period-1] = sum / float64(period)

	k := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(v); i++ {
		out[i] = v[i]*k + out[i-1]*(1-k)
	}
	return out[period-1:]
}

func ema(v []float64, period int) float64 {
	s := emaSeries(v, period)
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// rsi with Wilder smoothing; 50 when undefined
func rsi(v []float64, period int) float64 {
	if len(v) < period+1 {
		return 50.0
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := v[i] - v[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	for i := period + 1; i < len(v); i++ {
		change := v[i] - v[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// macd returns the 12/26 line and its 9-period signal
func macd(v []float64) (line, signal float64) {
	if len(v) < 26+9 {
		return 0, 0
	}
	fast := emaSeries(v, 12)
	slow := emaSeries(v, 26)

	// align: slow starts 14 bars after fast
	offset := len(fast) - len(slow)
	diff := make([]float64, len(slow))
	for i := range slow {
		diff[i] = fast[i+offset] - slow[i]
	}
	return diff[len(diff)-1], ema(diff, 9)
}

// atr is the Wilder average true range
func atr(cs []contracts.Candle, period int) float64 {
	if len(cs) < period+1 {
		return 0
	}
	tr := func(i int) float64 {
		c, prev := cs[i], cs[i-1].Close
		return math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prev), math.Abs(c.Low-prev)))
	}

	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr(i)
	}
	a := sum / float64(period)
	for i := period + 1; i < len(cs); i++ {
		a = (a*float64(period-1) + tr(i)) / float64(period)
	}
	return a
}

// ATR is exported for the level provider
func ATR(cs []contracts.Candle, period int) float64 {
	return atr(cs, period)
}

type swing struct {
	index int
	price float64
}

// swings finds fractal highs and lows with width bars on each side
func swings(cs []contracts.Candle, width int) (highs, lows []swing) {
	for i := width; i < len(cs)-width; i++ {
		isHigh, isLow := true, true
		for j := i - width; j <= i+width; j++ {
			if j == i {
				continue
			}
			if cs[j].High >= cs[i].High {
				isHigh = false
			}
			if cs[j].Low <= cs[i].Low {
				isLow = false
			}
		}
		if isHigh {
			highs = append(highs, swing{index: i, price: cs[i].High})
		}
		if isLow {
			lows = append(lows, swing{index: i, price: cs[i].Low})
		}
	}
	return highs, lows
}

func clampf(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
