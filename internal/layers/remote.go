package layers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/pkg/breaker"
	"github.com/wonny/confluence/backend/pkg/httputil"
)

// RemoteEvaluator delegates a layer to the analysis service over HTTP
// (wyckoff, orderflow, intermarket, sentiment)
type RemoteEvaluator struct {
	id      contracts.LayerID
	baseURL string
	client  *httputil.Client
	breaker *breaker.Breaker
}

type remoteRequest struct {
	Symbol  string             `json:"symbol"`
	AsOf    time.Time          `json:"as_of"`
	Candles []contracts.Candle `json:"candles,omitempty"`
}

type remoteResponse struct {
	Score     *int   `json:"score"`
	Passed    bool   `json:"passed"`
	Rationale string `json:"rationale"`
	Bias      string `json:"bias"`
}

// NewRemoteEvaluator creates a remote layer. cb may be shared by layers
// that call the same service.
func NewRemoteEvaluator(id contracts.LayerID, baseURL string, client *httputil.Client, cb *breaker.Breaker) *RemoteEvaluator {
	return &RemoteEvaluator{
		id:      id,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		breaker: cb,
	}
}

func (e *RemoteEvaluator) ID() contracts.LayerID   { return e.id }
func (e *RemoteEvaluator) Key() contracts.LayerKey { return e.id.Key() }

func (e *RemoteEvaluator) Evaluate(ctx context.Context, symbol string, mc *contracts.MarketContext) (contracts.LayerScore, error) {
	req := remoteRequest{Symbol: symbol, AsOf: asOf(mc)}
	if mc != nil {
		req.Candles = mc.Candles
	}
	url := fmt.Sprintf("%s/layers/%s", e.baseURL, e.Key())

	out, err := e.breaker.Execute(func() (any, error) {
		var resp remoteResponse
		if err := e.client.PostJSONInto(ctx, url, req, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return contracts.LayerScore{}, err
	}

	resp := out.(*remoteResponse)
	if resp.Score == nil {
		return contracts.LayerScore{}, fmt.Errorf("remote %s: response without score", e.Key())
	}

	bias := contracts.Direction(strings.ToLower(resp.Bias))
	if !bias.Valid() {
		bias = contracts.DirectionNone
	}
	rationale := resp.Rationale
	if rationale == "" {
		rationale = fmt.Sprintf("%s score %d", e.Key(), *resp.Score)
	}

	// the runner rejects out-of-range scores
	return contracts.LayerScore{
		LayerID:     e.id,
		Key:         e.Key(),
		Score:       *resp.Score,
		Passed:      resp.Passed,
		Rationale:   rationale,
		Bias:        bias,
		EvaluatedAt: req.AsOf,
	}, nil
}
