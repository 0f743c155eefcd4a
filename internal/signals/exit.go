package signals

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/instrument"
)

// crossed reports whether price reached level in the favourable (target)
// or adverse (stop) sense for the direction
func crossedTarget(dir contracts.Direction, price, level float64) bool {
	if dir == contracts.DirectionLong {
		return price >= level
	}
	return price <= level
}

func crossedStop(dir contracts.Direction, price, stop float64) bool {
	if dir == contracts.DirectionLong {
		return price <= stop
	}
	return price >= stop
}

// applyPrice advances sig in place for one price observation and returns
// the transitions it produced. A price that gaps through several targets
// records each one in order. Fills are booked at the level price.
func applyPrice(sig *contracts.Signal, price float64, at time.Time, policy StopPolicy) ([]contracts.SignalEvent, error) {
	var events []contracts.SignalEvent

	move := func(to contracts.SignalStatus, level, pips float64) error {
		if !CanTransition(sig.Status, to) {
			return fmt.Errorf("%w: %s → %s", contracts.ErrIllegalTransition, sig.Status, to)
		}
		events = append(events, contracts.SignalEvent{
			SignalID: sig.ID,
			From:     sig.Status,
			To:       to,
			Price:    level,
			Pips:     pips,
			At:       at,
		})
		sig.Status = to
		return nil
	}

	if sig.Status.IsTerminal() {
		return nil, nil
	}

	if crossedStop(sig.Direction, price, sig.ActiveStop) {
		remaining := 1.0
		for n := 1; n <= sig.Status.TPsHit(); n++ {
			remaining -= sig.ExitSplit.Weight(n)
		}
		pips := roundPips(remaining * instrument.Pips(sig.Symbol, sig.Direction, sig.Entry, sig.ActiveStop))
		if err := move(contracts.SignalStatusSLHit, sig.ActiveStop, pips); err != nil {
			return nil, err
		}
		sig.RealizedPips = roundPips(sig.RealizedPips + pips)
		closeSignal(sig, at)
		return events, nil
	}

	for !sig.Status.IsTerminal() {
		n := sig.Status.TPsHit() + 1
		level := sig.TakeProfit(n)
		if !crossedTarget(sig.Direction, price, level) {
			break
		}

		pips := roundPips(sig.ExitSplit.Weight(n) * instrument.Pips(sig.Symbol, sig.Direction, sig.Entry, level))
		if err := move(tpStatus(n), level, pips); err != nil {
			return nil, err
		}
		sig.RealizedPips = roundPips(sig.RealizedPips + pips)

		if n == 1 && policy == StopPolicyBreakeven {
			sig.ActiveStop = sig.Entry
		}
		if n == 3 {
			closeSignal(sig, at)
		}
	}

	return events, nil
}

// expire closes an open signal with whatever the targets already locked in
func expire(sig *contracts.Signal, at time.Time) (contracts.SignalEvent, error) {
	if !CanTransition(sig.Status, contracts.SignalStatusExpired) {
		return contracts.SignalEvent{}, fmt.Errorf("%w: %s → expired", contracts.ErrIllegalTransition, sig.Status)
	}
	ev := contracts.SignalEvent{
		SignalID: sig.ID,
		From:     sig.Status,
		To:       contracts.SignalStatusExpired,
		Price:    sig.LastPrice,
		At:       at,
	}
	sig.Status = contracts.SignalStatusExpired
	closeSignal(sig, at)
	return ev, nil
}

func closeSignal(sig *contracts.Signal, at time.Time) {
	closedAt := at
	result := sig.RealizedPips
	sig.ClosedAt = &closedAt
	sig.ResultPips = &result
}

func roundPips(v float64) float64 {
	return math.Round(v*10) / 10
}
