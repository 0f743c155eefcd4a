package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/confluence/backend/internal/confluence"
	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/killzone"
	"github.com/wonny/confluence/backend/internal/layers"
	"github.com/wonny/confluence/backend/internal/signals"
)

// 08:00 UTC falls inside the London session
var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fakeMarket struct {
	candles   int
	candleErr error
	quoteErr  error
}

func (f *fakeMarket) Candles(_ context.Context, _ string, _ string, limit int) ([]contracts.Candle, error) {
	if f.candleErr != nil {
		return nil, f.candleErr
	}
	n := f.candles
	if n > limit {
		n = limit
	}
	out := make([]contracts.Candle, n)
	for i := range out {
		out[i] = contracts.Candle{
			Time:   t0.Add(time.Duration(i-n) * time.Hour),
			Open:   1.1000,
			High:   1.1005,
			Low:    1.0995,
			Close:  1.1000,
			Volume: 1000,
		}
	}
	return out, nil
}

func (f *fakeMarket) Quote(_ context.Context, symbol string) (*contracts.Quote, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return &contracts.Quote{Symbol: symbol, Bid: 1.09995, Ask: 1.10005, Time: t0}, nil
}

type stubLayer struct {
	id     contracts.LayerID
	score  int
	bias   contracts.Direction
	passed bool
	calls  *atomic.Int32
}

func (s stubLayer) ID() contracts.LayerID   { return s.id }
func (s stubLayer) Key() contracts.LayerKey { return s.id.Key() }

func (s stubLayer) Evaluate(_ context.Context, _ string, mc *contracts.MarketContext) (contracts.LayerScore, error) {
	s.calls.Add(1)
	return contracts.LayerScore{
		LayerID:     s.id,
		Score:       s.score,
		Passed:      s.passed,
		Bias:        s.bias,
		Rationale:   string(s.id.Key()) + " ok",
		EvaluatedAt: mc.AsOf,
	}, nil
}

func uniform(score int, passed bool, bias contracts.Direction, calls *atomic.Int32) []layers.Evaluator {
	out := make([]layers.Evaluator, 0, contracts.LayerCount)
	for _, id := range contracts.AllLayerIDs() {
		out = append(out, stubLayer{id: id, score: score, passed: passed, bias: bias, calls: calls})
	}
	return out
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (c *mapCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = b
	c.mu.Unlock()
	return nil
}

type harness struct {
	svc     *Service
	manager *signals.Manager
	calls   *atomic.Int32
}

func newHarness(t *testing.T, market *fakeMarket, evals func(*atomic.Int32) []layers.Evaluator, cache Cache) harness {
	t.Helper()
	calls := &atomic.Int32{}
	runner, err := layers.NewRunner(evals(calls), time.Second, nil, nil)
	require.NoError(t, err)

	clock := func() time.Time { return t0 }
	manager := signals.NewManager(signals.NewMemoryRepository(), signals.DefaultConfig(), nil, nil).WithClock(clock)
	svc := NewService(
		market,
		runner,
		killzone.NewDefaultScheduler(),
		confluence.NewDefaultAggregator(),
		confluence.NewDefaultGate(),
		DefaultATRLevels(),
		manager,
		cache,
		Options{ConfigHash: "abc123"},
		nil,
		nil,
	).WithClock(clock)
	return harness{svc: svc, manager: manager, calls: calls}
}

func TestGenerate_PublishesThenSuppressesDuplicate(t *testing.T) {
	h := newHarness(t, &fakeMarket{candles: 60}, func(c *atomic.Int32) []layers.Evaluator {
		return uniform(90, true, contracts.DirectionLong, c)
	}, nil)

	res, err := h.svc.Generate(context.Background(), "eur/usd")
	require.NoError(t, err)
	require.Nil(t, res.Rejection)
	require.NotNil(t, res.Signal)

	sig := res.Signal
	assert.Equal(t, "EURUSD", sig.Symbol)
	assert.Equal(t, contracts.DirectionLong, sig.Direction)
	assert.Equal(t, 90, sig.ConfluenceScore)
	assert.Equal(t, contracts.QualityExcellent, sig.Quality)
	assert.Equal(t, "abc123", sig.ConfigHash)
	assert.InDelta(t, 1.1000, sig.Entry, 1e-9)
	assert.InDelta(t, 1.0985, sig.StopLoss, 1e-9)
	assert.InDelta(t, 1.1015, sig.TakeProfit1, 1e-9)
	assert.InDelta(t, 1.1025, sig.TakeProfit2, 1e-9)
	assert.InDelta(t, 1.1035, sig.TakeProfit3, 1e-9)
	assert.Len(t, sig.Reasoning, contracts.LayerCount)

	res, err = h.svc.Generate(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Nil(t, res.Signal)
	require.NotNil(t, res.Rejection)
	assert.Equal(t, contracts.RejectDuplicate, res.Rejection.Reason)
	assert.Equal(t, sig.ID, res.Rejection.ExistingSignalID)
}

func TestGenerate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		market *fakeMarket
		evals  func(*atomic.Int32) []layers.Evaluator
		want   contracts.RejectionReason
	}{
		{
			name:   "critical layers failed",
			market: &fakeMarket{candles: 60},
			evals: func(c *atomic.Int32) []layers.Evaluator {
				return uniform(40, false, contracts.DirectionNone, c)
			},
			want: contracts.RejectCriticalLayers,
		},
		{
			name:   "score below threshold",
			market: &fakeMarket{candles: 60},
			evals: func(c *atomic.Int32) []layers.Evaluator {
				return uniform(70, true, contracts.DirectionLong, c)
			},
			want: contracts.RejectScoreBelow,
		},
		{
			name:   "no direction",
			market: &fakeMarket{candles: 60},
			evals: func(c *atomic.Int32) []layers.Evaluator {
				return uniform(90, true, contracts.DirectionNone, c)
			},
			want: contracts.RejectNoDirection,
		},
		{
			name:   "levels unavailable",
			market: &fakeMarket{candles: 5},
			evals: func(c *atomic.Int32) []layers.Evaluator {
				return uniform(90, true, contracts.DirectionLong, c)
			},
			want: contracts.RejectLevelsUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.market, tt.evals, nil)
			res, err := h.svc.Generate(context.Background(), "EURUSD")
			require.NoError(t, err)
			assert.Nil(t, res.Signal)
			require.NotNil(t, res.Rejection)
			assert.Equal(t, tt.want, res.Rejection.Reason)
		})
	}
}

func TestGenerate_MarketDataError(t *testing.T) {
	h := newHarness(t, &fakeMarket{candleErr: errors.New("provider down")}, func(c *atomic.Int32) []layers.Evaluator {
		return uniform(90, true, contracts.DirectionLong, c)
	}, nil)

	_, err := h.svc.Generate(context.Background(), "EURUSD")
	assert.Error(t, err)

	_, err = h.svc.Generate(context.Background(), " ")
	assert.ErrorIs(t, err, contracts.ErrMalformedInput)
}

func TestAnalyze_QuoteFailureDegrades(t *testing.T) {
	h := newHarness(t, &fakeMarket{candles: 60, quoteErr: errors.New("no quote")}, func(c *atomic.Int32) []layers.Evaluator {
		return uniform(90, true, contracts.DirectionLong, c)
	}, nil)

	a, err := h.svc.Analyze(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 90, a.Confluence.CompositeScore)
}

func TestAnalyze_CachesAndFreshBypasses(t *testing.T) {
	cache := newMapCache()
	h := newHarness(t, &fakeMarket{candles: 60}, func(c *atomic.Int32) []layers.Evaluator {
		return uniform(85, true, contracts.DirectionShort, c)
	}, cache)

	a, err := h.svc.Analyze(context.Background(), "GBPUSD")
	require.NoError(t, err)
	assert.False(t, a.Cached)
	assert.Equal(t, 85, a.Confluence.CompositeScore)
	assert.Equal(t, contracts.QualityStrong, a.Quality)
	assert.True(t, a.Validation.Passed)
	assert.Equal(t, contracts.DirectionShort, a.Direction)
	assert.Equal(t, 100, a.ShortWeight)
	assert.Equal(t, contracts.KillZoneLondon, a.KillZone.CurrentZone)
	assert.Len(t, a.Layers, contracts.LayerCount)
	assert.Equal(t, int32(10), h.calls.Load())

	a, err = h.svc.Analyze(context.Background(), "gbpusd")
	require.NoError(t, err)
	assert.True(t, a.Cached)
	assert.Equal(t, 85, a.Confluence.CompositeScore)
	assert.Equal(t, int32(10), h.calls.Load(), "cache hit must not re-run layers")

	a, err = h.svc.AnalyzeFresh(context.Background(), "GBPUSD")
	require.NoError(t, err)
	assert.False(t, a.Cached)
	assert.Equal(t, int32(20), h.calls.Load())
}

func TestKillZone(t *testing.T) {
	h := newHarness(t, &fakeMarket{candles: 60}, func(c *atomic.Int32) []layers.Evaluator {
		return uniform(90, true, contracts.DirectionLong, c)
	}, nil)

	kz := h.svc.KillZone()
	assert.True(t, kz.IsActive)
	assert.Equal(t, contracts.KillZoneLondon, kz.CurrentZone)
}

func TestATRLevels(t *testing.T) {
	m := &fakeMarket{candles: 60}
	candles, _ := m.Candles(context.Background(), "EURUSD", "H1", 200)
	mc := &contracts.MarketContext{Symbol: "EURUSD", Candles: candles, AsOf: t0}

	lv, err := DefaultATRLevels().Levels(context.Background(), "EURUSD", contracts.DirectionShort, mc)
	require.NoError(t, err)
	assert.InDelta(t, 1.1000, lv.Entry, 1e-9, "last close without a quote")
	assert.InDelta(t, 1.1015, lv.StopLoss, 1e-9)
	assert.InDelta(t, 1.0985, lv.TakeProfit1, 1e-9)
	assert.InDelta(t, 1.0965, lv.TakeProfit3, 1e-9)
	assert.True(t, contracts.LevelsOrdered(contracts.DirectionShort, lv.Entry, lv.StopLoss, lv.TakeProfit1, lv.TakeProfit2, lv.TakeProfit3))

	_, err = DefaultATRLevels().Levels(context.Background(), "EURUSD", contracts.DirectionNone, mc)
	assert.ErrorIs(t, err, contracts.ErrMalformedInput)

	_, err = DefaultATRLevels().Levels(context.Background(), "EURUSD", contracts.DirectionLong, &contracts.MarketContext{})
	assert.ErrorIs(t, err, layers.ErrInsufficientData)
}

type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (g *blockingGenerator) Generate(ctx context.Context, symbol string) (*GenerateResult, error) {
	g.calls.Add(1)
	close(g.started)
	<-g.release
	return &GenerateResult{Rejection: &contracts.Rejection{Symbol: symbol, Reason: contracts.RejectScoreBelow}}, nil
}

func TestScanner_SkipsWhileInFlight(t *testing.T) {
	gen := &blockingGenerator{started: make(chan struct{}), release: make(chan struct{})}
	sc := NewScanner(gen, nil, nil, nil)

	done := make(chan ScanOutcome, 1)
	go func() { done <- sc.ScanSymbol(context.Background(), "EURUSD") }()
	<-gen.started

	second := sc.ScanSymbol(context.Background(), "eurusd")
	assert.True(t, second.Skipped)

	close(gen.release)
	first := <-done
	assert.False(t, first.Skipped)
	require.NoError(t, first.Err)
	assert.Equal(t, contracts.RejectScoreBelow, first.Result.Rejection.Reason)
	assert.Equal(t, int32(1), gen.calls.Load())
}

type countingGenerator struct {
	calls atomic.Int32
	fail  string
}

func (g *countingGenerator) Generate(_ context.Context, symbol string) (*GenerateResult, error) {
	g.calls.Add(1)
	if symbol == g.fail {
		return nil, errors.New("boom")
	}
	return &GenerateResult{}, nil
}

func TestScanner_ScanAll(t *testing.T) {
	gen := &countingGenerator{fail: "USDJPY"}
	sc := NewScanner(gen, nil, nil, nil)

	// A cancelled caller does not stop cycles from running
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := sc.ScanAll(ctx, []string{"EURUSD", "GBPUSD", "USDJPY"})
	require.Len(t, out, 3)
	assert.Equal(t, "EURUSD", out[0].Symbol)
	assert.NoError(t, out[1].Err)
	assert.Error(t, out[2].Err)
	assert.Equal(t, int32(3), gen.calls.Load())
}
