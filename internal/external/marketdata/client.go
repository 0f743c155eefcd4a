package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/instrument"
	"github.com/wonny/confluence/backend/pkg/httputil"
	"github.com/wonny/confluence/backend/pkg/logger"
	"github.com/wonny/confluence/backend/pkg/redis"
)

// QuoteCache holds the latest feed quotes (*redis.Cache satisfies it)
type QuoteCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
}

// Client handles communication with the OHLC/quote REST provider
// ⭐ SSOT: 시세 API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	baseURL    string
	quotes     QuoteCache
	logger     *logger.Logger
}

// NewClient creates a market data client. quotes may be nil.
func NewClient(httpClient *httputil.Client, baseURL string, quotes QuoteCache, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		quotes:     quotes,
		logger:     log,
	}
}

type candleResponse struct {
	Symbol  string             `json:"symbol"`
	Candles []contracts.Candle `json:"candles"`
}

// Candles returns up to limit bars, oldest first
func (c *Client) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]contracts.Candle, error) {
	symbol = instrument.Normalize(symbol)
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("timeframe", timeframe)
	params.Set("limit", strconv.Itoa(limit))

	var resp candleResponse
	if err := c.httpClient.GetJSON(ctx, fmt.Sprintf("%s/v1/candles?%s", c.baseURL, params.Encode()), &resp); err != nil {
		return nil, fmt.Errorf("fetch %s %s candles: %w", symbol, timeframe, err)
	}

	out := make([]contracts.Candle, 0, len(resp.Candles))
	for _, cd := range resp.Candles {
		if cd.Time.IsZero() || cd.High < cd.Low || cd.Close <= 0 {
			continue
		}
		out = append(out, cd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"timeframe": timeframe,
		"count":     len(out),
	}).Debug("Fetched candles")

	return out, nil
}

// Quote prefers the feed's snapshot and falls back to the REST provider
func (c *Client) Quote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	symbol = instrument.Normalize(symbol)

	if c.quotes != nil {
		var q contracts.Quote
		hit, err := c.quotes.Get(ctx, redis.QuoteKey(symbol), &q)
		if err != nil {
			c.logger.WithSymbol(symbol).WithError(err).Debug("Quote cache read failed")
		}
		if hit && q.Bid > 0 && q.Ask > 0 {
			return &q, nil
		}
	}

	var q contracts.Quote
	if err := c.httpClient.GetJSON(ctx, fmt.Sprintf("%s/v1/quote?symbol=%s", c.baseURL, url.QueryEscape(symbol)), &q); err != nil {
		return nil, fmt.Errorf("fetch %s quote: %w", symbol, err)
	}
	if q.Bid <= 0 || q.Ask <= 0 || q.Ask < q.Bid {
		return nil, fmt.Errorf("%w: %s quote bid=%v ask=%v", contracts.ErrMalformedInput, symbol, q.Bid, q.Ask)
	}
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	if q.Time.IsZero() {
		q.Time = time.Now().UTC()
	}
	return &q, nil
}
