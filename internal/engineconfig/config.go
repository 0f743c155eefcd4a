package engineconfig

import (
	"time"

	"github.com/wonny/confluence/backend/internal/confluence"
	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/killzone"
)

// Config는 컨플루언스 엔진의 전체 설정
type Config struct {
	Meta       Meta       `yaml:"meta" json:"meta"`
	Confluence Confluence `yaml:"confluence" json:"confluence"`
	Sessions   []Session  `yaml:"sessions" json:"sessions"` // priority order
	Signals    Signals    `yaml:"signals" json:"signals"`
	Scan       Scan       `yaml:"scan" json:"scan"`
	Levels     Levels     `yaml:"levels" json:"levels"`
	Layers     Layers     `yaml:"layers" json:"layers"`
}

// Meta 메타 정보
type Meta struct {
	EngineID string `yaml:"engine_id" json:"engine_id"`
	Version  string `yaml:"version" json:"version"`
}

// Confluence 가중치와 게이트
type Confluence struct {
	WeightsPct       LayerWeights `yaml:"weights_pct" json:"weights_pct"`
	CriticalLayers   []string     `yaml:"critical_layers" json:"critical_layers"` // layer keys
	MinPassed        int          `yaml:"min_passed" json:"min_passed"`
	PublishThreshold int          `yaml:"publish_threshold" json:"publish_threshold"`
	KillZonePenalty  int          `yaml:"kill_zone_penalty" json:"kill_zone_penalty"`
}

// LayerWeights 레이어별 가중치 (합 = 100)
type LayerWeights struct {
	SMC         int `yaml:"smc" json:"smc"`
	Structure   int `yaml:"structure" json:"structure"`
	Wyckoff     int `yaml:"wyckoff" json:"wyckoff"`
	VSA         int `yaml:"vsa" json:"vsa"`
	OrderFlow   int `yaml:"orderflow" json:"orderflow"`
	Technical   int `yaml:"technical" json:"technical"`
	Intermarket int `yaml:"intermarket" json:"intermarket"`
	Fundamental int `yaml:"fundamental" json:"fundamental"`
	Sentiment   int `yaml:"sentiment" json:"sentiment"`
	AI          int `yaml:"ai" json:"ai"`
}

// Sum returns the total weight
func (w LayerWeights) Sum() int {
	return w.SMC + w.Structure + w.Wyckoff + w.VSA + w.OrderFlow +
		w.Technical + w.Intermarket + w.Fundamental + w.Sentiment + w.AI
}

// ToWeights converts to the aggregator's id-keyed form
func (w LayerWeights) ToWeights() confluence.Weights {
	return confluence.Weights{
		contracts.LayerSMC:         w.SMC,
		contracts.LayerStructure:   w.Structure,
		contracts.LayerWyckoff:     w.Wyckoff,
		contracts.LayerVSA:         w.VSA,
		contracts.LayerOrderFlow:   w.OrderFlow,
		contracts.LayerTechnical:   w.Technical,
		contracts.LayerIntermarket: w.Intermarket,
		contracts.LayerFundamental: w.Fundamental,
		contracts.LayerSentiment:   w.Sentiment,
		contracts.LayerAI:          w.AI,
	}
}

// Session 킬존 세션 (UTC HH:MM)
type Session struct {
	Zone        string   `yaml:"zone" json:"zone"`
	Start       string   `yaml:"start" json:"start"`
	End         string   `yaml:"end" json:"end"`
	Volatility  string   `yaml:"volatility" json:"volatility"`
	Instruments []string `yaml:"instruments" json:"instruments"`
}

// Signals 시그널 라이프사이클
type Signals struct {
	MaxHolding time.Duration `yaml:"max_holding" json:"max_holding"`
	StopPolicy string        `yaml:"stop_policy" json:"stop_policy"` // breakeven | original
	ExitSplit  ExitSplit     `yaml:"exit_split" json:"exit_split"`
}

// ExitSplit 분할 청산 비율 (합 = 100)
type ExitSplit struct {
	TP1 int `yaml:"tp1" json:"tp1"`
	TP2 int `yaml:"tp2" json:"tp2"`
	TP3 int `yaml:"tp3" json:"tp3"`
}

// Scan 주기 스캔
type Scan struct {
	Interval     time.Duration `yaml:"interval" json:"interval"`
	LayerTimeout time.Duration `yaml:"layer_timeout" json:"layer_timeout"`
	Symbols      []string      `yaml:"symbols" json:"symbols"`
}

// Levels ATR 기반 진입/손절/익절
type Levels struct {
	ATRPeriod  int       `yaml:"atr_period" json:"atr_period"`
	Timeframe  string    `yaml:"timeframe" json:"timeframe"`
	StopATR    float64   `yaml:"stop_atr" json:"stop_atr"`
	TargetsATR []float64 `yaml:"targets_atr" json:"targets_atr"` // TP1..TP3
}

// Layers 내장 레이어 파라미터
type Layers struct {
	AIPassConfidence float64       `yaml:"ai_pass_confidence" json:"ai_pass_confidence"` // strictly greater passes
	NewsBlackout     time.Duration `yaml:"news_blackout" json:"news_blackout"`
	PassScore        int           `yaml:"pass_score" json:"pass_score"` // candle-based layers
	Timeframe        string        `yaml:"timeframe" json:"timeframe"`
	HTFTimeframe     string        `yaml:"htf_timeframe" json:"htf_timeframe"`
	CandleLimit      int           `yaml:"candle_limit" json:"candle_limit"`
}

// Default returns the built-in engine configuration
// ⭐ SSOT: 엔진 기본값
func Default() *Config {
	w := confluence.DefaultWeights()

	sessions := make([]Session, 0, 4)
	for _, s := range killzone.DefaultSessions() {
		sessions = append(sessions, Session{
			Zone:        string(s.Zone),
			Start:       s.Start.String(),
			End:         s.End.String(),
			Volatility:  string(s.Volatility),
			Instruments: append([]string(nil), s.Instruments...),
		})
	}

	critical := make([]string, 0, 4)
	for _, id := range confluence.DefaultCriticalLayers() {
		critical = append(critical, string(id.Key()))
	}

	return &Config{
		Meta: Meta{EngineID: "confluence_default", Version: "1"},
		Confluence: Confluence{
			WeightsPct: LayerWeights{
				SMC:         w[contracts.LayerSMC],
				Structure:   w[contracts.LayerStructure],
				Wyckoff:     w[contracts.LayerWyckoff],
				VSA:         w[contracts.LayerVSA],
				OrderFlow:   w[contracts.LayerOrderFlow],
				Technical:   w[contracts.LayerTechnical],
				Intermarket: w[contracts.LayerIntermarket],
				Fundamental: w[contracts.LayerFundamental],
				Sentiment:   w[contracts.LayerSentiment],
				AI:          w[contracts.LayerAI],
			},
			CriticalLayers:   critical,
			MinPassed:        confluence.DefaultMinPassed,
			PublishThreshold: confluence.PublishThreshold,
			KillZonePenalty:  confluence.DefaultKillZonePenalty,
		},
		Sessions: sessions,
		Signals: Signals{
			MaxHolding: 72 * time.Hour,
			StopPolicy: "breakeven",
			ExitSplit: ExitSplit{
				TP1: contracts.DefaultExitSplit.TP1,
				TP2: contracts.DefaultExitSplit.TP2,
				TP3: contracts.DefaultExitSplit.TP3,
			},
		},
		Scan: Scan{
			Interval:     5 * time.Minute,
			LayerTimeout: 5 * time.Second,
			Symbols:      []string{"EURUSD", "GBPUSD", "USDJPY", "XAUUSD"},
		},
		Levels: Levels{
			ATRPeriod:  14,
			Timeframe:  "H1",
			StopATR:    1.5,
			TargetsATR: []float64{1.5, 2.5, 3.5},
		},
		Layers: Layers{
			AIPassConfidence: 70,
			NewsBlackout:     30 * time.Minute,
			PassScore:        60,
			Timeframe:        "H1",
			HTFTimeframe:     "H4",
			CandleLimit:      200,
		},
	}
}
