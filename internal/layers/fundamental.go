package layers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/instrument"
)

// FundamentalEvaluator blocks trading around high-impact news for either
// currency of the instrument
type FundamentalEvaluator struct {
	calendar contracts.CalendarSource
	blackout time.Duration
}

// NewFundamentalEvaluator creates the news-blackout layer
func NewFundamentalEvaluator(calendar contracts.CalendarSource, blackout time.Duration) *FundamentalEvaluator {
	return &FundamentalEvaluator{calendar: calendar, blackout: blackout}
}

func (e *FundamentalEvaluator) ID() contracts.LayerID   { return contracts.LayerFundamental }
func (e *FundamentalEvaluator) Key() contracts.LayerKey { return contracts.LayerFundamental.Key() }

func (e *FundamentalEvaluator) Evaluate(ctx context.Context, symbol string, mc *contracts.MarketContext) (contracts.LayerScore, error) {
	at := asOf(mc)
	result := contracts.LayerScore{LayerID: e.ID(), Key: e.Key(), EvaluatedAt: at}

	currencies := instrument.Currencies(symbol)
	if e.blackout <= 0 || len(currencies) == 0 {
		result.Score, result.Passed = 80, true
		result.Rationale = "Fundamental: no news filter for this instrument"
		return result, nil
	}

	events, err := e.calendar.Events(ctx, at.Add(-e.blackout), at.Add(e.blackout))
	if err != nil {
		return contracts.LayerScore{}, fmt.Errorf("calendar: %w", err)
	}

	relevant := make(map[string]bool, len(currencies))
	for _, c := range currencies {
		relevant[c] = true
	}

	var high, medium []contracts.CalendarEvent
	for _, ev := range events {
		if !relevant[strings.ToUpper(ev.Currency)] {
			continue
		}
		if ev.Time.Before(at.Add(-e.blackout)) || ev.Time.After(at.Add(e.blackout)) {
			continue
		}
		switch strings.ToLower(ev.Impact) {
		case "high":
			high = append(high, ev)
		case "medium":
			medium = append(medium, ev)
		}
	}

	switch {
	case len(high) > 0:
		ev := high[0]
		result.Score, result.Passed = 10, false
		result.Rationale = fmt.Sprintf("Fundamental blackout: high-impact %s %q %s",
			ev.Currency, ev.Title, relative(ev.Time, at))
	case len(medium) > 0:
		result.Score, result.Passed = 65, true
		result.Rationale = fmt.Sprintf("Fundamental caution: %d medium-impact event(s) within %s", len(medium), e.blackout)
	default:
		result.Score, result.Passed = 90, true
		result.Rationale = fmt.Sprintf("Fundamental clear: no %s news within %s", strings.Join(currencies, "/"), e.blackout)
	}
	return result, nil
}

func relative(t, at time.Time) string {
	d := t.Sub(at).Round(time.Minute)
	if d >= 0 {
		return "in " + d.String()
	}
	return (-d).String() + " ago"
}
