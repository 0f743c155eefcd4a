package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/confluence/backend/internal/contracts"
)

type fakeSignals struct {
	open      map[string][]*contracts.Signal
	evaluated []string
	failID    string
}

func (f *fakeSignals) ListOpen(_ context.Context, symbol string) ([]*contracts.Signal, error) {
	return f.open[symbol], nil
}

func (f *fakeSignals) EvaluatePrice(_ context.Context, id string, tick contracts.PriceTick) (*contracts.Signal, []contracts.SignalEvent, error) {
	f.evaluated = append(f.evaluated, id)
	if id == f.failID {
		return nil, nil, errors.New("conflict")
	}
	return nil, []contracts.SignalEvent{{SignalID: id, From: contracts.SignalStatusActive, To: contracts.SignalStatusTP1Hit, Price: tick.Price, At: tick.At}}, nil
}

func TestExitMonitor_RoutesBySymbol(t *testing.T) {
	fs := &fakeSignals{open: map[string][]*contracts.Signal{
		"EURUSD": {{ID: "a"}, {ID: "b"}},
		"GBPUSD": {{ID: "c"}},
	}}
	m := NewExitMonitor(fs, nil)

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	events, err := m.Apply(context.Background(), contracts.PriceTick{Symbol: "eur/usd", Price: 1.105, At: at})
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, []string{"a", "b"}, fs.evaluated)
}

func TestExitMonitor_ContinuesPastFailure(t *testing.T) {
	fs := &fakeSignals{
		open:   map[string][]*contracts.Signal{"EURUSD": {{ID: "a"}, {ID: "b"}}},
		failID: "a",
	}
	m := NewExitMonitor(fs, nil)

	events, err := m.Apply(context.Background(), contracts.PriceTick{Symbol: "EURUSD", Price: 1.105})
	assert.Error(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, []string{"a", "b"}, fs.evaluated)

	assert.NotPanics(t, func() {
		m.OnTick(context.Background(), contracts.PriceTick{Symbol: "EURUSD", Price: 1.105})
	})
}

func TestNormalize(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	got := Normalize(contracts.PriceTick{Symbol: "EURUSD", Bid: 1.1, Ask: 1.1002}, now)
	assert.InDelta(t, 1.1001, got.Price, 1e-12)
	assert.Equal(t, now, got.At)

	got = Normalize(contracts.PriceTick{Symbol: "EURUSD", Price: 1.2, Bid: 1.1, Ask: 1.1002, At: now.Add(-time.Second)}, now)
	assert.Equal(t, 1.2, got.Price)
	assert.Equal(t, now.Add(-time.Second), got.At)
}
