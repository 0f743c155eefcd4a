package performance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/pkg/logger"
)

// ErrInvalidPeriod is returned for an unknown period code
var ErrInvalidPeriod = errors.New("invalid period")

// Periods lists the accepted period codes
var Periods = []string{"1D", "1W", "1M", "3M", "6M", "1Y", "YTD", "ALL"}

// ClosedSignals is the read side the analyzer needs
type ClosedSignals interface {
	ListClosed(ctx context.Context, from, to time.Time) ([]*contracts.Signal, error)
}

// Analyzer derives performance statistics from closed signals
// ⭐ SSOT: 성과 분석 로직은 여기서만
type Analyzer struct {
	source ClosedSignals
	logger *logger.Logger
	now    func() time.Time
}

// NewAnalyzer creates a new performance analyzer
func NewAnalyzer(source ClosedSignals, log *logger.Logger) *Analyzer {
	if log == nil {
		log = logger.Nop()
	}
	return &Analyzer{
		source: source,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the wall clock (tests)
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

// Report is the performance view for one period
type Report struct {
	Period    string    `json:"period"`
	StartDate time.Time `json:"start_date"` // zero for ALL
	EndDate   time.Time `json:"end_date"`

	// 트레이딩 지표
	TotalSignals int     `json:"total_signals"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	Scratches    int     `json:"scratches"` // closed at exactly 0 pips
	WinRate      float64 `json:"win_rate"`  // 0 ~ 1
	AvgWinPips   float64 `json:"avg_win_pips"`
	AvgLossPips  float64 `json:"avg_loss_pips"` // negative
	ProfitFactor float64 `json:"profit_factor"` // 0 when there are no losses

	// 핍 지표
	TotalPips       float64 `json:"total_pips"`
	MaxDrawdownPips float64 `json:"max_drawdown_pips"` // peak-to-trough, >= 0

	ByStatus  map[contracts.SignalStatus]int      `json:"by_status"`
	ByQuality map[contracts.Quality]*QualityStats `json:"by_quality"`
}

// QualityStats breaks results down per quality tier
type QualityStats struct {
	Count     int     `json:"count"`
	Wins      int     `json:"wins"`
	WinRate   float64 `json:"win_rate"`
	TotalPips float64 `json:"total_pips"`
}

// Analyze computes the report for a period code
func (a *Analyzer) Analyze(ctx context.Context, period string) (*Report, error) {
	period = strings.ToUpper(strings.TrimSpace(period))
	if period == "" {
		period = "1M"
	}

	now := a.now()
	start, err := ParsePeriod(period, now)
	if err != nil {
		return nil, err
	}

	signals, err := a.source.ListClosed(ctx, start, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get closed signals: %w", err)
	}

	report := Compute(signals)
	report.Period = period
	report.StartDate = start
	report.EndDate = now

	a.logger.WithFields(map[string]interface{}{
		"period":        period,
		"signals":       report.TotalSignals,
		"total_pips":    report.TotalPips,
		"win_rate":      report.WinRate,
		"max_drawdown":  report.MaxDrawdownPips,
		"profit_factor": report.ProfitFactor,
	}).Info("Performance analysis completed")

	return report, nil
}

// ParsePeriod returns the period start; ALL yields the zero time
func ParsePeriod(period string, now time.Time) (time.Time, error) {
	switch period {
	case "1D":
		return now.AddDate(0, 0, -1), nil
	case "1W":
		return now.AddDate(0, 0, -7), nil
	case "1M":
		return now.AddDate(0, -1, 0), nil
	case "3M":
		return now.AddDate(0, -3, 0), nil
	case "6M":
		return now.AddDate(0, -6, 0), nil
	case "1Y":
		return now.AddDate(-1, 0, 0), nil
	case "YTD":
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()), nil
	case "ALL":
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("%w %q: use one of %s", ErrInvalidPeriod, period, strings.Join(Periods, ", "))
	}
}

// Compute aggregates closed signals. Open signals and signals without a
// result are skipped. Input must be ordered by close time for the drawdown.
func Compute(signals []*contracts.Signal) *Report {
	r := &Report{
		ByStatus:  make(map[contracts.SignalStatus]int),
		ByQuality: make(map[contracts.Quality]*QualityStats),
	}

	var sumWin, sumLoss float64
	var cum, peak float64

	for _, s := range signals {
		if s == nil || s.ResultPips == nil || !s.Status.IsTerminal() {
			continue
		}
		pips := *s.ResultPips

		r.TotalSignals++
		r.ByStatus[s.Status]++
		r.TotalPips += pips

		q := r.ByQuality[s.Quality]
		if q == nil {
			q = &QualityStats{}
			r.ByQuality[s.Quality] = q
		}
		q.Count++
		q.TotalPips += pips

		switch {
		case pips > 0:
			r.Wins++
			q.Wins++
			sumWin += pips
		case pips < 0:
			r.Losses++
			sumLoss += pips
		default:
			r.Scratches++
		}

		cum += pips
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > r.MaxDrawdownPips {
			r.MaxDrawdownPips = dd
		}
	}

	if r.TotalSignals > 0 {
		r.WinRate = float64(r.Wins) / float64(r.TotalSignals)
	}
	if r.Wins > 0 {
		r.AvgWinPips = round1(sumWin / float64(r.Wins))
	}
	if r.Losses > 0 {
		r.AvgLossPips = round1(sumLoss / float64(r.Losses))
	}
	if sumLoss != 0 {
		r.ProfitFactor = sumWin / math.Abs(sumLoss)
	}
	for _, q := range r.ByQuality {
		q.WinRate = float64(q.Wins) / float64(q.Count)
		q.TotalPips = round1(q.TotalPips)
	}
	r.TotalPips = round1(r.TotalPips)
	r.MaxDrawdownPips = round1(r.MaxDrawdownPips)

	return r
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
