package engineconfig

import (
	"fmt"
	"strings"

	"github.com/wonny/confluence/backend/internal/confluence"
	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/instrument"
	"github.com/wonny/confluence/backend/internal/killzone"
	"github.com/wonny/confluence/backend/internal/signals"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Confluence ===
	c := cfg.Confluence
	if c.WeightsPct.Sum() != 100 {
		return ValidationError{"confluence.weights_pct", fmt.Sprintf("must sum to 100, got %d", c.WeightsPct.Sum())}
	}
	if err := c.WeightsPct.ToWeights().Validate(); err != nil {
		return ValidationError{"confluence.weights_pct", err.Error()}
	}
	if c.MinPassed < 1 || c.MinPassed > contracts.LayerCount {
		return ValidationError{"confluence.min_passed", fmt.Sprintf("must be in [1, %d]", contracts.LayerCount)}
	}
	if _, err := cfg.Gate(); err != nil {
		return ValidationError{"confluence.critical_layers", err.Error()}
	}
	// 발행 시그널은 항상 80점 이상
	if c.PublishThreshold < confluence.PublishThreshold || c.PublishThreshold > 100 {
		return ValidationError{"confluence.publish_threshold", fmt.Sprintf("must be in [%d, 100]", confluence.PublishThreshold)}
	}
	if c.KillZonePenalty < 0 || c.KillZonePenalty > 100 {
		return ValidationError{"confluence.kill_zone_penalty", "must be in [0, 100]"}
	}

	// === Sessions ===
	if _, err := cfg.KillZoneSessions(); err != nil {
		return ValidationError{"sessions", err.Error()}
	}

	// === Signals ===
	s := cfg.Signals
	if s.MaxHolding <= 0 {
		return ValidationError{"signals.max_holding", "must be > 0"}
	}
	if _, err := signals.ParseStopPolicy(s.StopPolicy); err != nil {
		return ValidationError{"signals.stop_policy", err.Error()}
	}
	if s.ExitSplit.TP1 <= 0 || s.ExitSplit.TP2 <= 0 || s.ExitSplit.TP3 <= 0 {
		return ValidationError{"signals.exit_split", "every target needs a positive share"}
	}
	if sum := s.ExitSplit.TP1 + s.ExitSplit.TP2 + s.ExitSplit.TP3; sum != 100 {
		return ValidationError{"signals.exit_split", fmt.Sprintf("must sum to 100, got %d", sum)}
	}

	// === Scan ===
	if cfg.Scan.Interval <= 0 {
		return ValidationError{"scan.interval", "must be > 0"}
	}
	if cfg.Scan.LayerTimeout <= 0 {
		return ValidationError{"scan.layer_timeout", "must be > 0"}
	}
	if len(cfg.Scan.Symbols) == 0 {
		return ValidationError{"scan.symbols", "at least one symbol is required"}
	}
	seen := make(map[string]bool, len(cfg.Scan.Symbols))
	for _, sym := range cfg.Scan.Symbols {
		n := instrument.Normalize(sym)
		if n == "" {
			return ValidationError{"scan.symbols", "blank symbol"}
		}
		if seen[n] {
			return ValidationError{"scan.symbols", fmt.Sprintf("duplicate symbol %s", n)}
		}
		seen[n] = true
	}

	// === Levels ===
	l := cfg.Levels
	if l.ATRPeriod < 2 {
		return ValidationError{"levels.atr_period", "must be >= 2"}
	}
	if l.StopATR <= 0 {
		return ValidationError{"levels.stop_atr", "must be > 0"}
	}
	if len(l.TargetsATR) != 3 {
		return ValidationError{"levels.targets_atr", "exactly three targets required"}
	}
	prev := 0.0
	for i, m := range l.TargetsATR {
		if m <= prev {
			return ValidationError{fmt.Sprintf("levels.targets_atr[%d]", i), "must be positive and strictly increasing"}
		}
		prev = m
	}

	// === Layers ===
	if cfg.Layers.AIPassConfidence < 0 || cfg.Layers.AIPassConfidence >= 100 {
		return ValidationError{"layers.ai_pass_confidence", "must be in [0, 100)"}
	}
	if cfg.Layers.NewsBlackout < 0 {
		return ValidationError{"layers.news_blackout", "must be >= 0"}
	}
	if cfg.Layers.PassScore < 0 || cfg.Layers.PassScore > 100 {
		return ValidationError{"layers.pass_score", "must be in [0, 100]"}
	}
	if cfg.Layers.CandleLimit < l.ATRPeriod+1 {
		return ValidationError{"layers.candle_limit", "must exceed levels.atr_period"}
	}

	return nil
}

// Warn returns non-fatal deviations from the recommended setup
func Warn(cfg *Config) []Warning {
	var ws []Warning

	ids, _ := cfg.CriticalLayerIDs()
	hasAI := false
	for _, id := range ids {
		if id == contracts.LayerAI {
			hasAI = true
		}
	}
	if !hasAI {
		ws = append(ws, Warning{"AI_NOT_CRITICAL", "ai layer is not critical; low AI confidence will not veto signals"})
	}
	if cfg.Confluence.MinPassed < confluence.DefaultMinPassed {
		ws = append(ws, Warning{"MIN_PASSED_LOW", fmt.Sprintf("min_passed=%d below recommended %d", cfg.Confluence.MinPassed, confluence.DefaultMinPassed)})
	}
	if cfg.Confluence.KillZonePenalty == 0 {
		ws = append(ws, Warning{"NO_KILLZONE_PENALTY", "off-session scans are not penalised"})
	}
	if cfg.Layers.NewsBlackout == 0 {
		ws = append(ws, Warning{"NO_NEWS_BLACKOUT", "fundamental layer never blocks on news"})
	}
	if cfg.Scan.LayerTimeout >= cfg.Scan.Interval {
		ws = append(ws, Warning{"TIMEOUT_EXCEEDS_INTERVAL", "layer_timeout >= scan interval; scans will be skipped"})
	}

	return ws
}

// CriticalLayerIDs resolves the configured critical layer keys
func (cfg *Config) CriticalLayerIDs() ([]contracts.LayerID, error) {
	out := make([]contracts.LayerID, 0, len(cfg.Confluence.CriticalLayers))
	for _, key := range cfg.Confluence.CriticalLayers {
		id, ok := contracts.LayerIDByKey(contracts.LayerKey(strings.ToLower(strings.TrimSpace(key))))
		if !ok {
			return nil, fmt.Errorf("unknown layer %q", key)
		}
		out = append(out, id)
	}
	return out, nil
}

// KillZoneSessions converts the session list for killzone.NewScheduler
func (cfg *Config) KillZoneSessions() ([]killzone.Session, error) {
	out := make([]killzone.Session, 0, len(cfg.Sessions))
	for i, s := range cfg.Sessions {
		start, err := killzone.ParseClock(s.Start)
		if err != nil {
			return nil, fmt.Errorf("session %d start: %w", i, err)
		}
		end, err := killzone.ParseClock(s.End)
		if err != nil {
			return nil, fmt.Errorf("session %d end: %w", i, err)
		}

		vol := contracts.Volatility(s.Volatility)
		switch vol {
		case contracts.VolatilityLow, contracts.VolatilityMedium, contracts.VolatilityHigh:
		default:
			return nil, fmt.Errorf("session %s: unknown volatility %q", s.Zone, s.Volatility)
		}

		instruments := make([]string, 0, len(s.Instruments))
		for _, sym := range s.Instruments {
			instruments = append(instruments, instrument.Normalize(sym))
		}

		out = append(out, killzone.Session{
			Zone:        contracts.KillZone(s.Zone),
			Start:       start,
			End:         end,
			Volatility:  vol,
			Instruments: instruments,
		})
	}

	// NewScheduler owns the remaining checks (duplicates, empty, off_hours)
	if _, err := killzone.NewScheduler(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Scheduler builds the kill-zone scheduler
func (cfg *Config) Scheduler() (*killzone.Scheduler, error) {
	sessions, err := cfg.KillZoneSessions()
	if err != nil {
		return nil, err
	}
	return killzone.NewScheduler(sessions)
}

// Aggregator builds the confluence aggregator
func (cfg *Config) Aggregator() (*confluence.Aggregator, error) {
	return confluence.NewAggregator(cfg.Confluence.WeightsPct.ToWeights(), cfg.Confluence.KillZonePenalty)
}

// Gate builds the validation gate
func (cfg *Config) Gate() (*confluence.Gate, error) {
	ids, err := cfg.CriticalLayerIDs()
	if err != nil {
		return nil, err
	}
	return confluence.NewGate(ids, cfg.Confluence.MinPassed)
}

// SignalsConfig returns the lifecycle settings
func (cfg *Config) SignalsConfig() signals.Config {
	policy, _ := signals.ParseStopPolicy(cfg.Signals.StopPolicy)
	return signals.Config{
		MaxHolding:       cfg.Signals.MaxHolding,
		StopPolicy:       policy,
		PublishThreshold: cfg.Confluence.PublishThreshold,
		ExitSplit: contracts.ExitSplit{
			TP1: cfg.Signals.ExitSplit.TP1,
			TP2: cfg.Signals.ExitSplit.TP2,
			TP3: cfg.Signals.ExitSplit.TP3,
		},
	}
}

// NormalizedSymbols returns the scan list in canonical form
func (cfg *Config) NormalizedSymbols() []string {
	out := make([]string, 0, len(cfg.Scan.Symbols))
	for _, s := range cfg.Scan.Symbols {
		out = append(out, instrument.Normalize(s))
	}
	return out
}
