package layers

import (
	"math"
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
)

var testAt = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

// series builds doji candles around the given closes
func series(prices []float64, halfRange, volume float64) []contracts.Candle {
	out := make([]contracts.Candle, len(prices))
	start := testAt.Add(-time.Duration(len(prices)) * time.Hour)
	for i, p := range prices {
		out[i] = contracts.Candle{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   p,
			High:   p + halfRange,
			Low:    p - halfRange,
			Close:  p,
			Volume: volume,
		}
	}
	return out
}

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func quadratic(n int, start, a float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + a*float64(i*i)
	}
	return out
}

// zigzag is a trend with a 10-bar oscillation, so fractal swings exist
func zigzag(n int, start, step, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i) + amp*math.Sin(2*math.Pi*float64(i)/10+0.3)
	}
	return out
}
