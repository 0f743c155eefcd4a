package contracts

import (
	"fmt"
	"time"
)

// LayerID identifies one of the ten analysis layers (1..10)
type LayerID int

// LayerKey is the component key used in weighted breakdowns
type LayerKey string

const (
	LayerSMC         LayerID = 1  // HTF trend + smart-money bias
	LayerStructure   LayerID = 2  // market structure
	LayerWyckoff     LayerID = 3  // Wyckoff phase
	LayerVSA         LayerID = 4  // volume spread analysis
	LayerOrderFlow   LayerID = 5  // order flow
	LayerTechnical   LayerID = 6  // RSI / MACD / MA
	LayerIntermarket LayerID = 7  // correlated markets
	LayerFundamental LayerID = 8  // news blackout
	LayerSentiment   LayerID = 9  // positioning / sentiment
	LayerAI          LayerID = 10 // AI confidence
)

// LayerCount is the number of layers every evaluation cycle must produce
const LayerCount = 10

var layerKeys = map[LayerID]LayerKey{
	LayerSMC:         "smc",
	LayerStructure:   "structure",
	LayerWyckoff:     "wyckoff",
	LayerVSA:         "vsa",
	LayerOrderFlow:   "orderflow",
	LayerTechnical:   "technical",
	LayerIntermarket: "intermarket",
	LayerFundamental: "fundamental",
	LayerSentiment:   "sentiment",
	LayerAI:          "ai",
}

// AllLayerIDs returns ids 1..10 in order
func AllLayerIDs() []LayerID {
	ids := make([]LayerID, 0, LayerCount)
	for id := LayerID(1); id <= LayerCount; id++ {
		ids = append(ids, id)
	}
	return ids
}

// Valid reports whether id is within 1..10
func (id LayerID) Valid() bool {
	return id >= 1 && id <= LayerCount
}

// Key returns the component key for the layer
func (id LayerID) Key() LayerKey {
	if key, ok := layerKeys[id]; ok {
		return key
	}
	return LayerKey(fmt.Sprintf("layer_%d", int(id)))
}

// LayerIDByKey resolves a component key ("smc", "ai") back to its id
func LayerIDByKey(key LayerKey) (LayerID, bool) {
	for id, k := range layerKeys {
		if k == key {
			return id, true
		}
	}
	return 0, false
}

// LayerScore is one evaluator's verdict for one symbol in one cycle
// ⭐ SSOT: 레이어 평가 결과는 이 구조체로만 전달
type LayerScore struct {
	LayerID     LayerID   `json:"layer_id"`
	Key         LayerKey  `json:"key"`
	Score       int       `json:"score"` // 0 ~ 100
	Passed      bool      `json:"passed"`
	Rationale   string    `json:"rationale"`
	Bias        Direction `json:"bias,omitempty"` // 방향성 없으면 ""
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Candle is one OHLCV bar
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Quote is a top-of-book snapshot
type Quote struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

// Mid returns the mid price
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// MarketContext is the input shared by every evaluator for a symbol
// ⭐ SSOT: 평가기 입력 데이터
type MarketContext struct {
	Symbol     string    `json:"symbol"`
	Candles    []Candle  `json:"candles"`     // execution timeframe (H1), oldest first
	HTFCandles []Candle  `json:"htf_candles"` // higher timeframe (H4), oldest first
	Quote      *Quote    `json:"quote,omitempty"`
	AsOf       time.Time `json:"as_of"`
}

// LastClose returns the latest execution-timeframe close (0 if none)
func (mc *MarketContext) LastClose() float64 {
	if mc == nil || len(mc.Candles) == 0 {
		return 0
	}
	return mc.Candles[len(mc.Candles)-1].Close
}
