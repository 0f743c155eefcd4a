package realtime

import (
	"context"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/instrument"
	"github.com/wonny/confluence/backend/pkg/logger"
)

// OpenSignals is the lifecycle surface the monitor drives
type OpenSignals interface {
	ListOpen(ctx context.Context, symbol string) ([]*contracts.Signal, error)
	EvaluatePrice(ctx context.Context, id string, tick contracts.PriceTick) (*contracts.Signal, []contracts.SignalEvent, error)
}

// ExitMonitor routes every accepted tick to the open signals of its symbol.
// It never closes a signal on its own; silence from the feed changes nothing.
// ⭐ SSOT: 가격 틱 → 시그널 라우팅은 여기서만
type ExitMonitor struct {
	signals OpenSignals
	logger  *logger.Logger
}

// NewExitMonitor creates an exit monitor
func NewExitMonitor(signals OpenSignals, log *logger.Logger) *ExitMonitor {
	if log == nil {
		log = logger.Nop()
	}
	return &ExitMonitor{signals: signals, logger: log}
}

// OnTick implements TickHandler
func (m *ExitMonitor) OnTick(ctx context.Context, tick contracts.PriceTick) {
	if _, err := m.Apply(ctx, tick); err != nil {
		m.logger.WithSymbol(tick.Symbol).WithError(err).Warn("Failed to apply price tick")
	}
}

// Apply evaluates tick against every open signal of its symbol and
// returns the transitions it caused. One failing signal does not stop
// the others; the first error is returned.
func (m *ExitMonitor) Apply(ctx context.Context, tick contracts.PriceTick) ([]contracts.SignalEvent, error) {
	symbol := instrument.Normalize(tick.Symbol)
	open, err := m.signals.ListOpen(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var events []contracts.SignalEvent
	var firstErr error
	for _, sig := range open {
		_, evs, err := m.signals.EvaluatePrice(ctx, sig.ID, tick)
		if err != nil {
			m.logger.WithSignal(sig.ID, symbol).WithError(err).Warn("Price evaluation failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		events = append(events, evs...)
	}
	return events, firstErr
}
