package layers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/pkg/logger"
	"github.com/wonny/confluence/backend/pkg/metrics"
)

// DefaultTimeout is the per-evaluator deadline
const DefaultTimeout = 5 * time.Second

// Runner fans a market context out to every layer and waits for all ten.
// A failing, slow or missing evaluator becomes a failed LayerScore.
// ⭐ SSOT: 레이어 팬아웃/팬인은 여기서만
type Runner struct {
	evaluators map[contracts.LayerID]Evaluator
	timeout    time.Duration
	metrics    *metrics.Recorder
	logger     *logger.Logger
}

// NewRunner registers evaluators by id. Ids must be unique and in range;
// unregistered ids are allowed and always fail.
func NewRunner(evaluators []Evaluator, timeout time.Duration, log *logger.Logger, rec *metrics.Recorder) (*Runner, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}

	byID := make(map[contracts.LayerID]Evaluator, len(evaluators))
	for _, ev := range evaluators {
		if ev == nil {
			continue
		}
		id := ev.ID()
		if !id.Valid() {
			return nil, fmt.Errorf("evaluator %q has invalid layer id %d", ev.Key(), id)
		}
		if _, dup := byID[id]; dup {
			return nil, fmt.Errorf("duplicate evaluator for layer %s", id.Key())
		}
		byID[id] = ev
	}

	return &Runner{evaluators: byID, timeout: timeout, metrics: rec, logger: log}, nil
}

// Missing lists layer ids without an evaluator
func (r *Runner) Missing() []contracts.LayerID {
	var out []contracts.LayerID
	for _, id := range contracts.AllLayerIDs() {
		if _, ok := r.evaluators[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// EvaluateAll returns exactly one score per layer, ordered by id. The
// caller's cancellation does not reach the evaluators; only the per-layer
// timeout does.
func (r *Runner) EvaluateAll(ctx context.Context, symbol string, mc *contracts.MarketContext) []contracts.LayerScore {
	ctx = context.WithoutCancel(ctx)
	if mc == nil {
		mc = &contracts.MarketContext{Symbol: symbol, AsOf: time.Now().UTC()}
	}

	ids := contracts.AllLayerIDs()
	results := make([]contracts.LayerScore, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			results[i] = r.evaluateOne(ctx, id, symbol, mc)
			return nil
		})
	}
	_ = g.Wait() // goroutines never fail

	return results
}

type outcome struct {
	score contracts.LayerScore
	err   error
}

func (r *Runner) evaluateOne(parent context.Context, id contracts.LayerID, symbol string, mc *contracts.MarketContext) contracts.LayerScore {
	at := asOf(mc)
	ev, ok := r.evaluators[id]
	if !ok {
		return r.failed(id, symbol, at, errors.New("no evaluator registered"))
	}

	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		s, err := ev.Evaluate(ctx, symbol, mc)
		done <- outcome{score: s, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return r.failed(id, symbol, at, o.err)
		}
		s := o.score
		if s.LayerID != id {
			return r.failed(id, symbol, at, fmt.Errorf("evaluator reported layer %d", s.LayerID))
		}
		if s.Score < 0 || s.Score > 100 {
			return r.failed(id, symbol, at, fmt.Errorf("score %d out of range", s.Score))
		}
		s.Key = id.Key()
		if s.EvaluatedAt.IsZero() {
			s.EvaluatedAt = at
		}
		return s
	case <-ctx.Done():
		return r.failed(id, symbol, at, fmt.Errorf("timed out after %s", r.timeout))
	}
}

func (r *Runner) failed(id contracts.LayerID, symbol string, at time.Time, cause error) contracts.LayerScore {
	r.metrics.LayerFailed(string(id.Key()))
	r.logger.WithSymbol(symbol).WithError(cause).WithField("layer", id.Key()).Warn("Layer evaluation failed")

	return contracts.LayerScore{
		LayerID:     id,
		Key:         id.Key(),
		Score:       0,
		Passed:      false,
		Rationale:   fmt.Sprintf("%s unavailable: %v", id.Key(), cause),
		EvaluatedAt: at,
	}
}
