package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/signals"
)

var (
	signalsStatus string
	signalsSymbol string
	signalsOpen   bool
	signalsLimit  int
	perfPeriod    string
)

// signalsCmd lists persisted signals
var signalsCmd = &cobra.Command{
	Use:   "signals [id]",
	Short: "시그널 조회",
	Long: `시그널 목록을 조회하거나, id를 주면 전이 이력과 함께 출력합니다.

Example:
  go run ./cmd/confluence signals --open
  go run ./cmd/confluence signals --status sl_hit --limit 20
  go run ./cmd/confluence signals 3f6c...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSignals,
}

// performanceCmd prints the closed-signal report
var performanceCmd = &cobra.Command{
	Use:   "performance",
	Short: "성과 리포트 (승률, pips, 낙폭)",
	RunE:  runPerformance,
}

func init() {
	rootCmd.AddCommand(signalsCmd)
	rootCmd.AddCommand(performanceCmd)

	signalsCmd.Flags().StringVar(&signalsStatus, "status", "", "상태 필터 (active|tp1_hit|tp2_hit|tp3_hit|sl_hit|expired)")
	signalsCmd.Flags().StringVar(&signalsSymbol, "symbol", "", "심볼 필터")
	signalsCmd.Flags().BoolVar(&signalsOpen, "open", false, "진행 중인 시그널만")
	signalsCmd.Flags().IntVar(&signalsLimit, "limit", 50, "최대 개수")
	signalsCmd.Flags().BoolVar(&jsonOutput, "json", false, "JSON 출력")

	performanceCmd.Flags().StringVar(&perfPeriod, "period", "1M", "1D|1W|1M|3M|6M|1Y|YTD|ALL")
	performanceCmd.Flags().BoolVar(&jsonOutput, "json", false, "JSON 출력")
}

func runSignals(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if len(args) == 1 {
		return showSignal(cmd, a, args[0])
	}

	f := signals.Filter{
		Status: contracts.SignalStatus(strings.ToLower(signalsStatus)),
		Open:   signalsOpen,
		Limit:  signalsLimit,
	}
	if signalsSymbol != "" {
		f.Symbol = normalizeArg(signalsSymbol)
	}
	if f.Status != "" && !f.Status.Valid() {
		return fmt.Errorf("unknown status %q", signalsStatus)
	}

	list, err := a.signals.List(cmd.Context(), f)
	if err != nil {
		return fmt.Errorf("list signals: %w", err)
	}
	if jsonOutput {
		return printJSON(list)
	}

	widths := []int{36, 8, 5, 5, 13, 9, 8, 16}
	PrintTableHeader([]string{"ID", "Symbol", "Dir", "Score", "Quality", "Status", "Pips", "Created (UTC)"}, widths)
	for _, s := range list {
		pips := "-"
		if s.ResultPips != nil {
			pips = strconv.FormatFloat(*s.ResultPips, 'f', 1, 64)
		}
		PrintTableRow([]string{
			s.ID, s.Symbol, string(s.Direction), strconv.Itoa(s.ConfluenceScore),
			string(s.Quality), string(s.Status), pips, s.CreatedAt.Format("2006-01-02 15:04"),
		}, widths)
	}
	fmt.Printf("\n%d signal(s)\n", len(list))
	return nil
}

func showSignal(cmd *cobra.Command, a *app, id string) error {
	sig, err := a.signals.Get(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("get signal: %w", err)
	}
	events, err := a.signals.Events(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("get events: %w", err)
	}
	if jsonOutput {
		return printJSON(map[string]interface{}{"signal": sig, "events": events})
	}

	PrintHeader(fmt.Sprintf("%s %s %s  (%s)", sig.Symbol, sig.Direction, sig.Status, sig.Quality))
	PrintKeyValue("Entry", strconv.FormatFloat(sig.Entry, 'f', -1, 64), 10)
	PrintKeyValue("Stop", fmt.Sprintf("%v (active %v)", sig.StopLoss, sig.ActiveStop), 10)
	PrintKeyValue("Targets", fmt.Sprintf("%v / %v / %v", sig.TakeProfit1, sig.TakeProfit2, sig.TakeProfit3), 10)
	PrintKeyValue("Score", strconv.Itoa(sig.ConfluenceScore), 10)
	PrintKeyValue("Realized", strconv.FormatFloat(sig.RealizedPips, 'f', 1, 64)+" pips", 10)
	PrintSeparator()
	for _, ev := range events {
		from := string(ev.From)
		if from == "" {
			from = "·"
		}
		fmt.Printf("   %s  %-8s → %-8s  @ %v  %+.1f pips\n", ev.At.Format("01-02 15:04"), from, ev.To, ev.Price, ev.Pips)
	}
	return nil
}

func runPerformance(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	r, err := a.performance.Analyze(cmd.Context(), perfPeriod)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(r)
	}

	PrintHeader(fmt.Sprintf("Performance %s  (%s ~ %s)", r.Period, r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02")))
	PrintKeyValue("Signals", fmt.Sprintf("%d (W %d / L %d / BE %d)", r.TotalSignals, r.Wins, r.Losses, r.Scratches), 14)
	PrintKeyValue("Win rate", fmt.Sprintf("%.1f%%", r.WinRate*100), 14)
	PrintKeyValue("Total pips", fmt.Sprintf("%+.1f", r.TotalPips), 14)
	PrintKeyValue("Avg win/loss", fmt.Sprintf("%.1f / %.1f", r.AvgWinPips, r.AvgLossPips), 14)
	PrintKeyValue("Profit factor", fmt.Sprintf("%.2f", r.ProfitFactor), 14)
	PrintKeyValue("Max drawdown", fmt.Sprintf("%.1f pips", r.MaxDrawdownPips), 14)
	return nil
}
