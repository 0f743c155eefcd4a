package signals

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/pkg/logger"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func eurLong() *contracts.TradeLevels {
	return &contracts.TradeLevels{Entry: 1.1000, StopLoss: 1.0950, TakeProfit1: 1.1050, TakeProfit2: 1.1100, TakeProfit3: 1.1150}
}

func gbpShort() *contracts.TradeLevels {
	return &contracts.TradeLevels{Entry: 1.2500, StopLoss: 1.2550, TakeProfit1: 1.2450, TakeProfit2: 1.2400, TakeProfit3: 1.2350}
}

func passingRequest(symbol string, dir contracts.Direction, lv *contracts.TradeLevels) CreateRequest {
	per := make([]contracts.LayerScore, 0, contracts.LayerCount)
	for _, id := range contracts.AllLayerIDs() {
		per = append(per, contracts.LayerScore{
			LayerID:   id,
			Key:       id.Key(),
			Score:     85,
			Passed:    true,
			Rationale: fmt.Sprintf("%s aligned", id.Key()),
			Bias:      dir,
		})
	}
	return CreateRequest{
		Symbol:    symbol,
		Direction: dir,
		Levels:    lv,
		Confluence: contracts.ConfluenceResult{
			PerLayer:       per,
			RawScore:       85,
			CompositeScore: 85,
			EvaluatedAt:    t0,
		},
		Validation: contracts.ValidationResult{
			PassedLayers:         10,
			RequiredMinimum:      8,
			CriticalLayerIDs:     []contracts.LayerID{1, 2, 3, 10},
			CriticalLayersFailed: []contracts.LayerID{},
			Passed:               true,
		},
		ConfigHash: "abc123",
	}
}

type fixture struct {
	repo *MemoryRepository
	mgr  *Manager
	now  time.Time
}

func newFixture(t *testing.T, policy StopPolicy) *fixture {
	t.Helper()
	f := &fixture{repo: NewMemoryRepository(), now: t0}
	cfg := DefaultConfig()
	cfg.StopPolicy = policy
	f.mgr = NewManager(f.repo, cfg, logger.Nop(), nil).WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) create(t *testing.T, req CreateRequest) *contracts.Signal {
	t.Helper()
	sig, rej, err := f.mgr.Create(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, rej)
	require.NotNil(t, sig)
	return sig
}

func tick(price float64, at time.Time) contracts.PriceTick {
	return contracts.PriceTick{Price: price, At: at, Source: "test"}
}

func TestCreate_PublishesActiveSignal(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)
	sig := f.create(t, passingRequest("eur/usd", contracts.DirectionLong, eurLong()))

	assert.Equal(t, "EURUSD", sig.Symbol)
	assert.Equal(t, contracts.SignalStatusActive, sig.Status)
	assert.Equal(t, contracts.QualityStrong, sig.Quality)
	assert.Equal(t, 85, sig.ConfluenceScore)
	assert.Equal(t, contracts.DefaultExitSplit, sig.ExitSplit)
	assert.Equal(t, sig.StopLoss, sig.ActiveStop)
	assert.Equal(t, t0.Add(72*time.Hour), sig.ExpiresAt)
	assert.Equal(t, "abc123", sig.ConfigHash)
	assert.Nil(t, sig.ClosedAt)
	assert.Nil(t, sig.ResultPips)
	assert.True(t, sig.LevelsOrdered())
	require.Len(t, sig.Reasoning, 10)
	assert.Equal(t, "smc aligned", sig.Reasoning[0])
	assert.Equal(t, "ai aligned", sig.Reasoning[9])
	require.NotNil(t, sig.Confluence)
	assert.Equal(t, "EURUSD", sig.Confluence.Symbol)

	events, err := f.mgr.Events(context.Background(), sig.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, contracts.SignalStatus(""), events[0].From)
	assert.Equal(t, contracts.SignalStatusActive, events[0].To)
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateRequest)
		reason contracts.RejectionReason
		gate   string
	}{
		{
			name: "critical layer failed",
			mutate: func(r *CreateRequest) {
				r.Validation.Passed = false
				r.Validation.PassedLayers = 9
				r.Validation.CriticalLayersFailed = []contracts.LayerID{contracts.LayerAI}
			},
			reason: contracts.RejectCriticalLayers,
			gate:   contracts.GateValidation,
		},
		{
			name: "insufficient layers",
			mutate: func(r *CreateRequest) {
				r.Validation.Passed = false
				r.Validation.PassedLayers = 7
			},
			reason: contracts.RejectInsufficient,
			gate:   contracts.GateValidation,
		},
		{
			name:   "score below threshold",
			mutate: func(r *CreateRequest) { r.Confluence.CompositeScore = 79 },
			reason: contracts.RejectScoreBelow,
			gate:   contracts.GateScore,
		},
		{
			name:   "no direction",
			mutate: func(r *CreateRequest) { r.Direction = contracts.DirectionNone },
			reason: contracts.RejectNoDirection,
			gate:   contracts.GateDirection,
		},
		{
			name:   "levels unavailable",
			mutate: func(r *CreateRequest) { r.Levels = nil },
			reason: contracts.RejectLevelsUnavailable,
			gate:   contracts.GateLevels,
		},
		{
			name:   "levels out of order",
			mutate: func(r *CreateRequest) { r.Levels.TakeProfit2 = 1.1200 },
			reason: contracts.RejectInvalidLevels,
			gate:   contracts.GateLevels,
		},
		{
			name:   "short levels for long signal",
			mutate: func(r *CreateRequest) { r.Levels = gbpShort() },
			reason: contracts.RejectInvalidLevels,
			gate:   contracts.GateLevels,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, StopPolicyBreakeven)
			req := passingRequest("EURUSD", contracts.DirectionLong, eurLong())
			tt.mutate(&req)

			sig, rej, err := f.mgr.Create(context.Background(), req)
			require.NoError(t, err)
			assert.Nil(t, sig)
			require.NotNil(t, rej)
			assert.Equal(t, tt.reason, rej.Reason)
			assert.Equal(t, tt.gate, rej.FailedGate)
			assert.Equal(t, "EURUSD", rej.Symbol)
			assert.NotEmpty(t, rej.Message)

			open, err := f.mgr.ListOpen(context.Background(), "EURUSD")
			require.NoError(t, err)
			assert.Empty(t, open)
		})
	}
}

func TestCreate_CriticalRejectionNamesLayers(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)
	req := passingRequest("EURUSD", contracts.DirectionLong, eurLong())
	req.Validation.Passed = false
	req.Validation.CriticalLayersFailed = []contracts.LayerID{contracts.LayerWyckoff, contracts.LayerAI}

	_, rej, err := f.mgr.Create(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, []contracts.LayerID{contracts.LayerWyckoff, contracts.LayerAI}, rej.CriticalLayersFailed)
	assert.Contains(t, rej.Message, "wyckoff, ai")
}

func TestCreate_DuplicateSuppressed(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)
	first := f.create(t, passingRequest("EURUSD", contracts.DirectionLong, eurLong()))

	sig, rej, err := f.mgr.Create(context.Background(), passingRequest("EURUSD", contracts.DirectionLong, eurLong()))
	require.NoError(t, err)
	assert.Nil(t, sig)
	require.NotNil(t, rej)
	assert.Equal(t, contracts.RejectDuplicate, rej.Reason)
	assert.Equal(t, first.ID, rej.ExistingSignalID)

	// other symbols are independent
	f.create(t, passingRequest("GBPUSD", contracts.DirectionShort, gbpShort()))
}

func TestCreate_AllowedAgainAfterClose(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)
	first := f.create(t, passingRequest("EURUSD", contracts.DirectionLong, eurLong()))

	_, _, err := f.mgr.EvaluatePrice(context.Background(), first.ID, tick(1.0900, t0.Add(time.Minute)))
	require.NoError(t, err)

	f.create(t, passingRequest("EURUSD", contracts.DirectionLong, eurLong()))
}

func TestCreate_ConcurrentScansCreateOnce(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)

	var created, duplicates int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sig, rej, err := f.mgr.Create(context.Background(), passingRequest("XAUUSD", contracts.DirectionLong,
				&contracts.TradeLevels{Entry: 2000, StopLoss: 1990, TakeProfit1: 2010, TakeProfit2: 2020, TakeProfit3: 2030}))
			assert.NoError(t, err)
			if sig != nil {
				atomic.AddInt32(&created, 1)
			}
			if rej != nil && rej.Reason == contracts.RejectDuplicate {
				atomic.AddInt32(&duplicates, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created)
	assert.Equal(t, int32(19), duplicates)
}

func TestEvaluatePrice_StopBeforeTarget(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)
	sig := f.create(t, passingRequest("EURUSD", contracts.DirectionLong, eurLong()))

	got, events, err := f.mgr.EvaluatePrice(context.Background(), sig.ID, tick(1.0940, t0.Add(time.Minute)))
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, contracts.SignalStatusSLHit, got.Status)
	assert.Equal(t, 1.0950, events[0].Price)
	require.NotNil(t, got.ResultPips)
	assert.InDelta(t, -50.0, *got.ResultPips, 1e-9)
	require.NotNil(t, got.ClosedAt)
	assert.Equal(t, t0.Add(time.Minute), *got.ClosedAt)
}

func TestEvaluatePrice_GapThroughAllTargets(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)
	sig := f.create(t, passingRequest("EURUSD", contracts.DirectionLong, eurLong()))

	got, events, err := f.mgr.EvaluatePrice(context.Background(), sig.ID, tick(1.1200, t0.Add(time.Minute)))
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, contracts.SignalStatusTP1Hit, events[0].To)
	assert.Equal(t, contracts.SignalStatusTP2Hit, events[1].To)
	assert.Equal(t, contracts.SignalStatusTP3Hit, events[2].To)
	assert.Equal(t, contracts.SignalStatusActive, events[0].From)
	assert.Equal(t, contracts.SignalStatusTP2Hit, events[2].From)

	// 0.5×50 + 0.3×100 + 0.2×150
	require.NotNil(t, got.ResultPips)
	assert.InDelta(t, 85.0, *got.ResultPips, 1e-9)
	assert.Equal(t, contracts.SignalStatusTP3Hit, got.Status)

	stored, err := f.mgr.Events(context.Background(), sig.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestEvaluatePrice_ShortSignal(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)
	sig := f.create(t, passingRequest("GBPUSD", contracts.DirectionShort, gbpShort()))

	got, events, err := f.mgr.EvaluatePrice(context.Background(), sig.ID, tick(1.2440, t0.Add(time.Minute)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, contracts.SignalStatusTP1Hit, got.Status)
	assert.InDelta(t, 25.0, got.RealizedPips, 1e-9)
	assert.Equal(t, got.Entry, got.ActiveStop)
	assert.Nil(t, got.ResultPips)
}

func TestEvaluatePrice_BreakevenAfterTP1(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)
	sig := f.create(t, passingRequest("EURUSD", contracts.DirectionLong, eurLong()))
	ctx := context.Background()

	_, _, err := f.mgr.EvaluatePrice(ctx, sig.ID, tick(1.1060, t0.Add(time.Minute)))
	require.NoError(t, err)

	got, events, err := f.mgr.EvaluatePrice(ctx, sig.ID, tick(1.0990, t0.Add(2*time.Minute)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, contracts.SignalStatusSLHit, got.Status)
	assert.Equal(t, 1.1000, events[0].Price)
	require.NotNil(t, got.ResultPips)
	assert.InDelta(t, 25.0, *got.ResultPips, 1e-9)
}

func TestEvaluatePrice_OriginalStopAfterTP1(t *testing.T) {
	f := newFixture(t, StopPolicyOriginal)
	sig := f.create(t, passingRequest("EURUSD", contracts.DirectionLong, eurLong()))
	ctx := context.Background()

	got, _, err := f.mgr.EvaluatePrice(ctx, sig.ID, tick(1.1060, t0.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, 1.0950, got.ActiveStop)

	// price back under entry does not close under the original policy
	got, events, err := f.mgr.EvaluatePrice(ctx, sig.ID, tick(1.0990, t0.Add(2*time.Minute)))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, contracts.SignalStatusTP1Hit, got.Status)

	got, _, err = f.mgr.EvaluatePrice(ctx, sig.ID, tick(1.0940, t0.Add(3*time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, contracts.SignalStatusSLHit, got.Status)
	require.NotNil(t, got.ResultPips)
	// +25 from TP1, then 0.5 × -50 on the remainder
	assert.InDelta(t, 0.0, *got.ResultPips, 1e-9)
}

func TestEvaluatePrice_IdempotentAndStale(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)
	sig := f.create(t, passingRequest("EURUSD", contracts.DirectionLong, eurLong()))
	ctx := context.Background()

	first, events, err := f.mgr.EvaluatePrice(ctx, sig.ID, tick(1.1060, t0.Add(2*time.Minute)))
	require.NoError(t, err)
	require.Len(t, events, 1)

	again, events, err := f.mgr.EvaluatePrice(ctx, sig.ID, tick(1.1060, t0.Add(2*time.Minute)))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, first.Version, again.Version)

	// an older tick that would have stopped the signal is ignored
	stale, events, err := f.mgr.EvaluatePrice(ctx, sig.ID, tick(1.0900, t0.Add(time.Minute)))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, contracts.SignalStatusTP1Hit, stale.Status)
}

func TestEvaluatePrice_TerminalIsNoOp(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)
	sig := f.create(t, passingRequest("EURUSD", contracts.DirectionLong, eurLong()))
	ctx := context.Background()

	closed, _, err := f.mgr.EvaluatePrice(ctx, sig.ID, tick(1.0900, t0.Add(time.Minute)))
	require.NoError(t, err)

	got, events, err := f.mgr.EvaluatePrice(ctx, sig.ID, tick(1.1500, t0.Add(2*time.Minute)))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, contracts.SignalStatusSLHit, got.Status)
	assert.Equal(t, *closed.ResultPips, *got.ResultPips)
}

func TestEvaluatePrice_RejectsBadInput(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)
	sig := f.create(t, passingRequest("EURUSD", contracts.DirectionLong, eurLong()))
	ctx := context.Background()

	_, _, err := f.mgr.EvaluatePrice(ctx, sig.ID, tick(0, t0))
	assert.ErrorIs(t, err, contracts.ErrMalformedInput)

	wrong := tick(1.1, t0)
	wrong.Symbol = "GBPUSD"
	_, _, err = f.mgr.EvaluatePrice(ctx, sig.ID, wrong)
	assert.ErrorIs(t, err, contracts.ErrMalformedInput)

	_, _, err = f.mgr.EvaluatePrice(ctx, "missing", tick(1.1, t0))
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestEvaluatePrice_UsesMidWhenPriceMissing(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)
	sig := f.create(t, passingRequest("EURUSD", contracts.DirectionLong, eurLong()))

	got, _, err := f.mgr.EvaluatePrice(context.Background(), sig.ID,
		contracts.PriceTick{Bid: 1.1054, Ask: 1.1056, At: t0.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, contracts.SignalStatusTP1Hit, got.Status)
	assert.InDelta(t, 1.1055, got.LastPrice, 1e-9)
}

func TestEvaluatePrice_StatusNeverRegresses(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 50; run++ {
		f := newFixture(t, StopPolicyBreakeven)
		sig := f.create(t, passingRequest("EURUSD", contracts.DirectionLong, eurLong()))
		ctx := context.Background()

		price := 1.1000
		for i := 1; i <= 200; i++ {
			price += (rng.Float64() - 0.5) * 0.0020
			_, _, err := f.mgr.EvaluatePrice(ctx, sig.ID, tick(price, t0.Add(time.Duration(i)*time.Second)))
			require.NoError(t, err)
		}

		events, err := f.mgr.Events(ctx, sig.ID)
		require.NoError(t, err)
		for _, ev := range events[1:] {
			assert.True(t, CanTransition(ev.From, ev.To), "%s → %s", ev.From, ev.To)
		}

		final, err := f.mgr.Get(ctx, sig.ID)
		require.NoError(t, err)
		if final.Status.IsTerminal() {
			require.NotNil(t, final.ResultPips)
			var sum float64
			for _, ev := range events {
				sum += ev.Pips
			}
			assert.InDelta(t, sum, *final.ResultPips, 0.05)
			assert.GreaterOrEqual(t, *final.ResultPips, -50.0)
			assert.LessOrEqual(t, *final.ResultPips, 85.0)
		}
	}
}

func TestExpireDue(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)
	ctx := context.Background()

	untouched := f.create(t, passingRequest("EURUSD", contracts.DirectionLong, eurLong()))
	partial := f.create(t, passingRequest("GBPUSD", contracts.DirectionShort, gbpShort()))
	_, _, err := f.mgr.EvaluatePrice(ctx, partial.ID, tick(1.2440, t0.Add(time.Hour)))
	require.NoError(t, err)

	n, err := f.mgr.ExpireDue(ctx, t0.Add(71*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.mgr.ExpireDue(ctx, t0.Add(72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := f.mgr.Get(ctx, untouched.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.SignalStatusExpired, got.Status)
	require.NotNil(t, got.ResultPips)
	assert.Zero(t, *got.ResultPips)

	got, err = f.mgr.Get(ctx, partial.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.SignalStatusExpired, got.Status)
	assert.InDelta(t, 25.0, *got.ResultPips, 1e-9)

	// second pass finds nothing
	n, err = f.mgr.ExpireDue(ctx, t0.Add(80*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}

// conflictRepo fails the first n updates with a version conflict
type conflictRepo struct {
	*MemoryRepository
	remaining int32
}

func (r *conflictRepo) Update(ctx context.Context, sig *contracts.Signal, expected int64, events []contracts.SignalEvent) error {
	if atomic.AddInt32(&r.remaining, -1) >= 0 {
		return contracts.ErrVersionConflict
	}
	return r.MemoryRepository.Update(ctx, sig, expected, events)
}

func TestEvaluatePrice_RetriesVersionConflict(t *testing.T) {
	repo := &conflictRepo{MemoryRepository: NewMemoryRepository(), remaining: 2}
	mgr := NewManager(repo, DefaultConfig(), nil, nil).WithClock(func() time.Time { return t0 })

	sig, _, err := mgr.Create(context.Background(), passingRequest("EURUSD", contracts.DirectionLong, eurLong()))
	require.NoError(t, err)

	got, events, err := mgr.EvaluatePrice(context.Background(), sig.ID, tick(1.1060, t0.Add(time.Minute)))
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, int64(2), got.Version)
}

func TestEvaluatePrice_GivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := &conflictRepo{MemoryRepository: NewMemoryRepository(), remaining: 10}
	mgr := NewManager(repo, DefaultConfig(), nil, nil).WithClock(func() time.Time { return t0 })

	sig, _, err := mgr.Create(context.Background(), passingRequest("EURUSD", contracts.DirectionLong, eurLong()))
	require.NoError(t, err)

	_, _, err = mgr.EvaluatePrice(context.Background(), sig.ID, tick(1.1060, t0.Add(time.Minute)))
	assert.ErrorIs(t, err, contracts.ErrVersionConflict)
}

func TestList(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)
	ctx := context.Background()

	eur := f.create(t, passingRequest("EURUSD", contracts.DirectionLong, eurLong()))
	f.now = t0.Add(time.Minute)
	f.create(t, passingRequest("GBPUSD", contracts.DirectionShort, gbpShort()))
	_, _, err := f.mgr.EvaluatePrice(ctx, eur.ID, tick(1.0900, t0.Add(2*time.Minute)))
	require.NoError(t, err)

	all, err := f.mgr.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "GBPUSD", all[0].Symbol, "newest first")

	stopped, err := f.mgr.List(ctx, Filter{Status: contracts.SignalStatusSLHit})
	require.NoError(t, err)
	require.Len(t, stopped, 1)
	assert.Equal(t, eur.ID, stopped[0].ID)

	open, err := f.mgr.ListOpen(ctx, "")
	require.NoError(t, err)
	require.Len(t, open, 1)

	closed, err := f.mgr.ListClosed(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, closed, 1)
}

func TestEvaluatePrice_LateTickExpiresInsteadOfHitting(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)
	sig := f.create(t, passingRequest("EURUSD", contracts.DirectionLong, eurLong()))

	// beyond TP3, but 100h after creation with a 72h holding period
	got, events, err := f.mgr.EvaluatePrice(context.Background(), sig.ID, tick(1.1160, t0.Add(100*time.Hour)))
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, contracts.SignalStatusExpired, events[0].To)
	assert.Equal(t, sig.ExpiresAt, events[0].At)
	assert.Equal(t, contracts.SignalStatusExpired, got.Status)
	require.NotNil(t, got.ResultPips)
	assert.Zero(t, *got.ResultPips)
	require.NotNil(t, got.ClosedAt)
	assert.Equal(t, sig.ExpiresAt, *got.ClosedAt)
}

func TestEvaluatePrice_LateTickKeepsPartialPips(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)
	sig := f.create(t, passingRequest("EURUSD", contracts.DirectionLong, eurLong()))
	ctx := context.Background()

	_, _, err := f.mgr.EvaluatePrice(ctx, sig.ID, tick(1.1060, t0.Add(time.Hour)))
	require.NoError(t, err)

	got, events, err := f.mgr.EvaluatePrice(ctx, sig.ID, tick(1.0900, t0.Add(72*time.Hour)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, contracts.SignalStatusTP1Hit, events[0].From)
	assert.Equal(t, contracts.SignalStatusExpired, got.Status)
	assert.InDelta(t, 25.0, *got.ResultPips, 1e-9)
}

func TestEvaluatePrice_FutureTickDoesNotFreezeSignal(t *testing.T) {
	f := newFixture(t, StopPolicyOriginal)
	wall := t0.Add(30 * time.Minute)
	f.mgr.WithTickClock(func() time.Time { return wall })
	sig := f.create(t, passingRequest("EURUSD", contracts.DirectionLong, eurLong()))
	ctx := context.Background()

	got, events, err := f.mgr.EvaluatePrice(ctx, sig.ID, tick(1.1060, t0.AddDate(1, 0, 0)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, contracts.SignalStatusTP1Hit, got.Status)
	assert.Equal(t, wall, got.LastTickAt, "clamped to the wall clock")

	wall = t0.Add(time.Hour)
	got, events, err = f.mgr.EvaluatePrice(ctx, sig.ID, tick(1.0940, t0.Add(time.Hour)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, contracts.SignalStatusSLHit, got.Status)
}

func TestCreate_ReasoningKeepsOneEntryPerLayer(t *testing.T) {
	f := newFixture(t, StopPolicyBreakeven)
	req := passingRequest("EURUSD", contracts.DirectionLong, eurLong())
	req.Confluence.PerLayer[3].Rationale = ""

	sig := f.create(t, req)

	require.Len(t, sig.Reasoning, contracts.LayerCount)
	key := req.Confluence.PerLayer[3].Key
	assert.Equal(t, string(key)+": no rationale", sig.Reasoning[3])
	assert.Equal(t, req.Confluence.PerLayer[4].Rationale, sig.Reasoning[4])
}
