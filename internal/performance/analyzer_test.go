package performance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/confluence/backend/internal/contracts"
)

var now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func closed(status contracts.SignalStatus, q contracts.Quality, pips float64, daysAgo int) *contracts.Signal {
	at := now.AddDate(0, 0, -daysAgo)
	p := pips
	return &contracts.Signal{Status: status, Quality: q, ResultPips: &p, ClosedAt: &at}
}

type fakeSource struct {
	signals  []*contracts.Signal
	from, to time.Time
	err      error
}

func (f *fakeSource) ListClosed(_ context.Context, from, to time.Time) ([]*contracts.Signal, error) {
	f.from, f.to = from, to
	return f.signals, f.err
}

func TestCompute(t *testing.T) {
	r := Compute([]*contracts.Signal{
		closed(contracts.SignalStatusTP3Hit, contracts.QualityExcellent, 85, 5),
		closed(contracts.SignalStatusSLHit, contracts.QualityGood, -50, 4),
		closed(contracts.SignalStatusSLHit, contracts.QualityGood, -50, 3),
		closed(contracts.SignalStatusExpired, contracts.QualityGood, 0, 2),
		closed(contracts.SignalStatusSLHit, contracts.QualityStrong, 25, 1),
	})

	assert.Equal(t, 5, r.TotalSignals)
	assert.Equal(t, 2, r.Wins)
	assert.Equal(t, 2, r.Losses)
	assert.Equal(t, 1, r.Scratches)
	assert.InDelta(t, 0.4, r.WinRate, 1e-12)
	assert.InDelta(t, 10.0, r.TotalPips, 1e-9)
	assert.InDelta(t, 55.0, r.AvgWinPips, 1e-9)
	assert.InDelta(t, -50.0, r.AvgLossPips, 1e-9)
	assert.InDelta(t, 110.0/100.0, r.ProfitFactor, 1e-12)
	// 85 → 35 → -15: trough 100 below the peak
	assert.InDelta(t, 100.0, r.MaxDrawdownPips, 1e-9)

	assert.Equal(t, 3, r.ByStatus[contracts.SignalStatusSLHit])
	assert.Equal(t, 1, r.ByStatus[contracts.SignalStatusExpired])
	require.Contains(t, r.ByQuality, contracts.QualityGood)
	assert.Equal(t, 3, r.ByQuality[contracts.QualityGood].Count)
	assert.Zero(t, r.ByQuality[contracts.QualityGood].WinRate)
	assert.InDelta(t, -100.0, r.ByQuality[contracts.QualityGood].TotalPips, 1e-9)
}

func TestCompute_NoLossesMeansZeroProfitFactor(t *testing.T) {
	r := Compute([]*contracts.Signal{closed(contracts.SignalStatusTP1Hit, contracts.QualityGood, 0, 1)})
	assert.Zero(t, r.TotalSignals, "non-terminal statuses are skipped")

	r = Compute([]*contracts.Signal{closed(contracts.SignalStatusTP3Hit, contracts.QualityGood, 85, 1)})
	assert.Zero(t, r.ProfitFactor)
	assert.Zero(t, r.MaxDrawdownPips)
	assert.Equal(t, 1.0, r.WinRate)
}

func TestCompute_Empty(t *testing.T) {
	r := Compute(nil)
	assert.Zero(t, r.TotalSignals)
	assert.Zero(t, r.WinRate)
	assert.NotNil(t, r.ByQuality)
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		period string
		want   time.Time
	}{
		{"1D", now.AddDate(0, 0, -1)},
		{"1W", now.AddDate(0, 0, -7)},
		{"1M", now.AddDate(0, -1, 0)},
		{"3M", now.AddDate(0, -3, 0)},
		{"6M", now.AddDate(0, -6, 0)},
		{"1Y", now.AddDate(-1, 0, 0)},
		{"YTD", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"ALL", time.Time{}},
	}
	for _, tt := range tests {
		got, err := ParsePeriod(tt.period, now)
		require.NoError(t, err, tt.period)
		assert.Equal(t, tt.want, got, tt.period)
	}

	_, err := ParsePeriod("2Q", now)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestAnalyze(t *testing.T) {
	src := &fakeSource{signals: []*contracts.Signal{
		closed(contracts.SignalStatusTP3Hit, contracts.QualityExcellent, 85, 2),
	}}
	a := NewAnalyzer(src, nil).WithClock(func() time.Time { return now })

	r, err := a.Analyze(context.Background(), "1w")
	require.NoError(t, err)
	assert.Equal(t, "1W", r.Period)
	assert.Equal(t, now.AddDate(0, 0, -7), src.from)
	assert.Equal(t, now, src.to)
	assert.Equal(t, 1, r.TotalSignals)

	r, err = a.Analyze(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "1M", r.Period)

	_, err = a.Analyze(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	src.err = errors.New("db down")
	_, err = a.Analyze(context.Background(), "ALL")
	assert.Error(t, err)
}
