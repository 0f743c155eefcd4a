package httputil_test

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/confluence/backend/pkg/httputil"
	"github.com/wonny/confluence/backend/pkg/logger"
)

// Example_getJSON demonstrates fetching a JSON document
func Example_getJSON() {
	// Create HTTP client (SSOT)
	client := httputil.New(logger.Nop()).
		WithHeader("X-API-Key", "demo")

	var out struct {
		Symbol string  `json:"symbol"`
		Bid    float64 `json:"bid"`
		Ask    float64 `json:"ask"`
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.GetJSON(ctx, "https://marketdata.example.com/v1/quote?symbol=EURUSD", &out); err != nil {
		fmt.Printf("Request failed: %v\n", err)
		return
	}
	fmt.Printf("%s %.5f/%.5f\n", out.Symbol, out.Bid, out.Ask)
}

// Example_noRetry demonstrates a client for latency-bound calls
func Example_noRetry() {
	// Layer evaluators call with the layer timeout and no retry,
	// the runner substitutes a failed score on error.
	client := httputil.NewWithTimeout(logger.Nop(), 5*time.Second).DisableRetry()

	var verdict map[string]interface{}
	err := client.PostJSONInto(context.Background(), "https://ai.example.com/score",
		map[string]string{"symbol": "EURUSD"}, &verdict)
	if err != nil {
		fmt.Printf("Scoring failed: %v\n", err)
	}
}
