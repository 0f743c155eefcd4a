package signals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/confluence/backend/internal/confluence"
	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/instrument"
	"github.com/wonny/confluence/backend/internal/keylock"
	"github.com/wonny/confluence/backend/pkg/logger"
	"github.com/wonny/confluence/backend/pkg/metrics"
)

const maxUpdateAttempts = 3

// Config holds lifecycle settings
type Config struct {
	MaxHolding       time.Duration
	StopPolicy       StopPolicy
	PublishThreshold int
	ExitSplit        contracts.ExitSplit
}

// DefaultConfig returns 72h holding, breakeven stop, threshold 80, 50/30/20
func DefaultConfig() Config {
	return Config{
		MaxHolding:       72 * time.Hour,
		StopPolicy:       StopPolicyBreakeven,
		PublishThreshold: confluence.PublishThreshold,
		ExitSplit:        contracts.DefaultExitSplit,
	}
}

// CreateRequest carries everything a scan decided about a symbol
type CreateRequest struct {
	Symbol     string
	Direction  contracts.Direction
	Levels     *contracts.TradeLevels
	Confluence contracts.ConfluenceResult
	Validation contracts.ValidationResult
	ConfigHash string
}

// Manager owns signal creation and every status transition
// ⭐ SSOT: 시그널 생성/전이는 여기서만
type Manager struct {
	repo    Repository
	cfg     Config
	symbols *keylock.Map // creation, one per symbol
	ids     *keylock.Map // writes, one per signal
	metrics *metrics.Recorder
	logger  *logger.Logger
	now     func() time.Time
	tickNow func() time.Time // bounds tick timestamps
	newID   func() string
}

// NewManager creates a lifecycle manager. rec may be nil.
func NewManager(repo Repository, cfg Config, log *logger.Logger, rec *metrics.Recorder) *Manager {
	if cfg.StopPolicy == "" {
		cfg.StopPolicy = StopPolicyBreakeven
	}
	if cfg.ExitSplit == (contracts.ExitSplit{}) {
		cfg.ExitSplit = contracts.DefaultExitSplit
	}
	if cfg.MaxHolding <= 0 {
		cfg.MaxHolding = DefaultConfig().MaxHolding
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		repo:    repo,
		cfg:     cfg,
		symbols: keylock.New(),
		ids:     keylock.New(),
		metrics: rec,
		logger:  log,
		now:     func() time.Time { return time.Now().UTC() },
		tickNow: func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.New().String() },
	}
}

// WithClock replaces the wall clock (tests)
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithTickClock replaces the clock that future-dated ticks are clamped to (tests)
func (m *Manager) WithTickClock(now func() time.Time) *Manager {
	m.tickNow = now
	return m
}

// Config returns the effective lifecycle settings
func (m *Manager) Config() Config {
	return m.cfg
}

// Create publishes a signal when every gate passes. Expected "conditions
// not met" outcomes come back as a Rejection with a nil error.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*contracts.Signal, *contracts.Rejection, error) {
	symbol := instrument.Normalize(req.Symbol)
	if symbol == "" {
		return nil, nil, fmt.Errorf("%w: empty symbol", contracts.ErrMalformedInput)
	}

	if rej := m.checkGates(symbol, req); rej != nil {
		m.reject(rej)
		return nil, rej, nil
	}

	unlock, err := m.symbols.LockContext(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	existing, err := m.repo.FindOpenBySymbol(ctx, symbol)
	switch {
	case err == nil:
		rej := m.duplicate(symbol, req, existing.ID)
		m.reject(rej)
		return nil, rej, nil
	case !errors.Is(err, contracts.ErrNotFound):
		return nil, nil, fmt.Errorf("failed to check open signals for %s: %w", symbol, err)
	}

	sig, rej := m.build(symbol, req)
	if rej != nil {
		m.reject(rej)
		return nil, rej, nil
	}

	created := contracts.SignalEvent{
		SignalID: sig.ID,
		To:       contracts.SignalStatusActive,
		Price:    sig.Entry,
		At:       sig.CreatedAt,
	}

	if err := m.repo.Insert(ctx, sig, created); err != nil {
		if errors.Is(err, contracts.ErrDuplicate) {
			// another instance won the race
			var existingID string
			if other, ferr := m.repo.FindOpenBySymbol(ctx, symbol); ferr == nil {
				existingID = other.ID
			}
			rej := m.duplicate(symbol, req, existingID)
			m.reject(rej)
			return nil, rej, nil
		}
		return nil, nil, err
	}

	m.metrics.SignalCreated(symbol, string(sig.Quality))
	m.logger.WithSignal(sig.ID, symbol).WithFields(map[string]interface{}{
		"direction": sig.Direction,
		"score":     sig.ConfluenceScore,
		"quality":   sig.Quality,
		"entry":     sig.Entry,
	}).Info("Signal created")

	return sig, nil, nil
}

func (m *Manager) checkGates(symbol string, req CreateRequest) *contracts.Rejection {
	v := req.Validation
	base := contracts.Rejection{
		Symbol:         symbol,
		CompositeScore: req.Confluence.CompositeScore,
		PassedLayers:   v.PassedLayers,
	}

	if len(v.CriticalLayersFailed) > 0 {
		rej := base
		rej.Reason = contracts.RejectCriticalLayers
		rej.FailedGate = contracts.GateValidation
		rej.CriticalLayersFailed = append([]contracts.LayerID(nil), v.CriticalLayersFailed...)
		rej.Message = fmt.Sprintf("critical layers failed: %s", layerKeys(v.CriticalLayersFailed))
		return &rej
	}
	if !v.Passed {
		rej := base
		rej.Reason = contracts.RejectInsufficient
		rej.FailedGate = contracts.GateValidation
		rej.Message = fmt.Sprintf("%d of %d layers passed, %d required", v.PassedLayers, contracts.LayerCount, v.RequiredMinimum)
		return &rej
	}
	if req.Confluence.CompositeScore < m.cfg.PublishThreshold {
		rej := base
		rej.Reason = contracts.RejectScoreBelow
		rej.FailedGate = contracts.GateScore
		rej.Message = fmt.Sprintf("composite %d below threshold %d", req.Confluence.CompositeScore, m.cfg.PublishThreshold)
		return &rej
	}
	if !req.Direction.Valid() {
		rej := base
		rej.Reason = contracts.RejectNoDirection
		rej.FailedGate = contracts.GateDirection
		rej.Message = "passed layers do not agree on a direction"
		return &rej
	}
	if req.Levels == nil {
		rej := base
		rej.Reason = contracts.RejectLevelsUnavailable
		rej.FailedGate = contracts.GateLevels
		rej.Message = "no trade levels supplied"
		return &rej
	}
	return nil
}

func (m *Manager) duplicate(symbol string, req CreateRequest, existingID string) *contracts.Rejection {
	return &contracts.Rejection{
		Symbol:           symbol,
		Reason:           contracts.RejectDuplicate,
		FailedGate:       contracts.GateDuplicate,
		CompositeScore:   req.Confluence.CompositeScore,
		PassedLayers:     req.Validation.PassedLayers,
		ExistingSignalID: existingID,
		Message:          "an open signal already exists for this symbol",
	}
}

func (m *Manager) build(symbol string, req CreateRequest) (*contracts.Signal, *contracts.Rejection) {
	lv := req.Levels
	round := func(p float64) float64 { return instrument.RoundPrice(symbol, p) }
	entry, sl := round(lv.Entry), round(lv.StopLoss)
	tp1, tp2, tp3 := round(lv.TakeProfit1), round(lv.TakeProfit2), round(lv.TakeProfit3)

	if !contracts.LevelsOrdered(req.Direction, entry, sl, tp1, tp2, tp3) {
		return nil, &contracts.Rejection{
			Symbol:         symbol,
			Reason:         contracts.RejectInvalidLevels,
			FailedGate:     contracts.GateLevels,
			CompositeScore: req.Confluence.CompositeScore,
			PassedLayers:   req.Validation.PassedLayers,
			Message: fmt.Sprintf("%s levels out of order: sl=%v entry=%v tp=%v/%v/%v",
				req.Direction, sl, entry, tp1, tp2, tp3),
		}
	}

	now := m.now()
	snapshot := req.Confluence
	snapshot.Symbol = symbol

	// one entry per layer, in layer order
	reasoning := make([]string, 0, len(snapshot.PerLayer))
	for _, ls := range snapshot.PerLayer {
		r := ls.Rationale
		if r == "" {
			r = fmt.Sprintf("%s: no rationale", ls.Key)
		}
		reasoning = append(reasoning, r)
	}

	sig := &contracts.Signal{
		ID:              m.newID(),
		Symbol:          symbol,
		Direction:       req.Direction,
		Entry:           entry,
		StopLoss:        sl,
		TakeProfit1:     tp1,
		TakeProfit2:     tp2,
		TakeProfit3:     tp3,
		ExitSplit:       m.cfg.ExitSplit,
		ConfluenceScore: snapshot.CompositeScore,
		Quality:         confluence.Classify(snapshot.CompositeScore),
		Status:          contracts.SignalStatusActive,
		Reasoning:       reasoning,
		CreatedAt:       now,
		ExpiresAt:       now.Add(m.cfg.MaxHolding),
		ActiveStop:      sl,
		LastPrice:       entry,
		Version:         1,
		ConfigHash:      req.ConfigHash,
		Confluence:      cloneConfluence(&snapshot),
	}
	return sig, nil
}

// EvaluatePrice applies one price observation to a signal. Terminal
// signals and ticks older than the last applied one are ignored. A tick at
// or past ExpiresAt expires the signal instead of crossing levels, and a
// tick stamped beyond the wall clock plus MaxTickSkew is clamped to it.
func (m *Manager) EvaluatePrice(ctx context.Context, id string, tick contracts.PriceTick) (*contracts.Signal, []contracts.SignalEvent, error) {
	price := tick.Price
	if price == 0 && tick.Bid > 0 && tick.Ask > 0 {
		price = (tick.Bid + tick.Ask) / 2
	}
	if price <= 0 {
		return nil, nil, fmt.Errorf("%w: non-positive price", contracts.ErrMalformedInput)
	}
	at := tick.At
	if at.IsZero() {
		at = m.now()
	} else if wall := m.tickNow(); tick.FromFuture(wall) {
		at = wall
	}

	unlock, err := m.ids.LockContext(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		sig, err := m.repo.Get(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if tick.Symbol != "" && instrument.Normalize(tick.Symbol) != sig.Symbol {
			return nil, nil, fmt.Errorf("%w: tick for %s applied to %s signal", contracts.ErrMalformedInput, tick.Symbol, sig.Symbol)
		}
		if !sig.IsOpen() || at.Before(sig.LastTickAt) {
			return sig, nil, nil
		}

		next := clone(sig)
		var events []contracts.SignalEvent
		if !at.Before(sig.ExpiresAt) {
			// 보유 기간 종료 후 가격은 TP/SL로 인정하지 않음
			ev, err := expire(next, sig.ExpiresAt)
			if err != nil {
				return nil, nil, err
			}
			events = []contracts.SignalEvent{ev}
		} else {
			events, err = applyPrice(next, price, at, m.cfg.StopPolicy)
			if err != nil {
				return nil, nil, err
			}
			if len(events) == 0 {
				return sig, nil, nil
			}
			next.LastPrice = price
		}

		next.LastTickAt = at
		next.Version = sig.Version + 1

		err = m.repo.Update(ctx, next, sig.Version, events)
		if errors.Is(err, contracts.ErrVersionConflict) && attempt < maxUpdateAttempts {
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		m.recordTransitions(next, events)
		return next, events, nil
	}
}

// ExpireDue closes every open signal whose holding period ended by now
func (m *Manager) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := m.repo.ListExpirable(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expirable signals: %w", err)
	}

	expired := 0
	for _, s := range due {
		ok, err := m.expireOne(ctx, s.ID, now)
		if err != nil {
			m.logger.WithSignal(s.ID, s.Symbol).WithError(err).Error("Failed to expire signal")
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

func (m *Manager) expireOne(ctx context.Context, id string, now time.Time) (bool, error) {
	unlock, err := m.ids.LockContext(ctx, id)
	if err != nil {
		return false, err
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		sig, err := m.repo.Get(ctx, id)
		if err != nil {
			return false, err
		}
		if !sig.IsOpen() || sig.ExpiresAt.After(now) {
			return false, nil
		}

		next := clone(sig)
		ev, err := expire(next, now)
		if err != nil {
			return false, err
		}
		next.Version = sig.Version + 1

		err = m.repo.Update(ctx, next, sig.Version, []contracts.SignalEvent{ev})
		if errors.Is(err, contracts.ErrVersionConflict) && attempt < maxUpdateAttempts {
			continue
		}
		if err != nil {
			return false, err
		}

		m.recordTransitions(next, []contracts.SignalEvent{ev})
		return true, nil
	}
}

func (m *Manager) recordTransitions(sig *contracts.Signal, events []contracts.SignalEvent) {
	log := m.logger.WithSignal(sig.ID, sig.Symbol)
	for _, ev := range events {
		m.metrics.SignalTransition(string(ev.To), ev.To.IsTerminal())
		log.WithFields(map[string]interface{}{
			"from":  ev.From,
			"to":    ev.To,
			"price": ev.Price,
			"pips":  ev.Pips,
		}).Info("Signal transition")
	}
}

func (m *Manager) reject(rej *contracts.Rejection) {
	m.metrics.Rejection(string(rej.Reason))
	m.logger.WithSymbol(rej.Symbol).WithFields(map[string]interface{}{
		"reason":    rej.Reason,
		"gate":      rej.FailedGate,
		"composite": rej.CompositeScore,
	}).Debug("Signal rejected")
}

// SyncOpenGauge sets the open-signal gauge from storage (startup)
func (m *Manager) SyncOpenGauge(ctx context.Context) error {
	open, err := m.repo.ListOpen(ctx, "")
	if err != nil {
		return err
	}
	m.metrics.SetOpenSignals(len(open))
	return nil
}

func (m *Manager) Get(ctx context.Context, id string) (*contracts.Signal, error) {
	return m.repo.Get(ctx, id)
}

func (m *Manager) List(ctx context.Context, f Filter) ([]*contracts.Signal, error) {
	if f.Symbol != "" {
		f.Symbol = instrument.Normalize(f.Symbol)
	}
	return m.repo.List(ctx, f)
}

// ListOpen returns open signals, all symbols when symbol is empty
func (m *Manager) ListOpen(ctx context.Context, symbol string) ([]*contracts.Signal, error) {
	if symbol != "" {
		symbol = instrument.Normalize(symbol)
	}
	return m.repo.ListOpen(ctx, symbol)
}

func (m *Manager) ListClosed(ctx context.Context, from, to time.Time) ([]*contracts.Signal, error) {
	return m.repo.ListClosed(ctx, from, to)
}

func (m *Manager) Events(ctx context.Context, id string) ([]contracts.SignalEvent, error) {
	return m.repo.Events(ctx, id)
}

func layerKeys(ids []contracts.LayerID) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += string(id.Key())
	}
	return out
}
