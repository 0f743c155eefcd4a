package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/confluence/backend/internal/engine"
)

var (
	analyzeFresh bool
	jsonOutput   bool
)

// analyzeCmd prints the layer breakdown for a symbol
var analyzeCmd = &cobra.Command{
	Use:   "analyze [symbol]",
	Short: "심볼 컨플루언스 분석 (시그널 생성 없음)",
	Long: `10개 레이어를 실행하고 가중 점수, 게이트 결과, 등급을 출력합니다.

Example:
  go run ./cmd/confluence analyze EURUSD
  go run ./cmd/confluence analyze XAUUSD --fresh --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

// generateCmd runs one generate cycle
var generateCmd = &cobra.Command{
	Use:   "generate [symbol]",
	Short: "시그널 생성 시도",
	Long: `분석 후 모든 게이트를 통과하면 시그널을 발행합니다.
조건 미충족은 오류가 아니라 거절 사유로 출력됩니다.

Example:
  go run ./cmd/confluence generate GBPUSD --store memory`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

// killzoneCmd prints the current session window
var killzoneCmd = &cobra.Command{
	Use:   "killzone",
	Short: "현재 킬존 세션 조회",
	RunE:  runKillZone,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(killzoneCmd)

	analyzeCmd.Flags().BoolVar(&analyzeFresh, "fresh", false, "캐시 무시")
	for _, c := range []*cobra.Command{analyzeCmd, generateCmd, killzoneCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "JSON 출력")
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	symbol := normalizeArg(args[0])
	var res *engine.Analysis
	if analyzeFresh {
		res, err = a.engine.AnalyzeFresh(cmd.Context(), symbol)
	} else {
		res, err = a.engine.Analyze(cmd.Context(), symbol)
	}
	if err != nil {
		return fmt.Errorf("analyze %s: %w", symbol, err)
	}

	if jsonOutput {
		return printJSON(res)
	}
	printAnalysis(res)
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	symbol := normalizeArg(args[0])
	res, err := a.engine.Generate(cmd.Context(), symbol)
	if err != nil {
		return fmt.Errorf("generate %s: %w", symbol, err)
	}

	if jsonOutput {
		return printJSON(res)
	}
	printAnalysis(res.Analysis)
	fmt.Println()

	if res.Signal != nil {
		s := res.Signal
		PrintSuccess(fmt.Sprintf("Signal %s published", s.ID))
		PrintKeyValue("Direction", string(s.Direction), 12)
		PrintKeyValue("Entry", strconv.FormatFloat(s.Entry, 'f', -1, 64), 12)
		PrintKeyValue("Stop", strconv.FormatFloat(s.StopLoss, 'f', -1, 64), 12)
		PrintKeyValue("Targets", fmt.Sprintf("%v / %v / %v", s.TakeProfit1, s.TakeProfit2, s.TakeProfit3), 12)
		PrintKeyValue("Expires", s.ExpiresAt.Format(time.RFC3339), 12)
		return nil
	}

	rej := res.Rejection
	PrintWarning(fmt.Sprintf("Rejected at %s gate: %s", rej.FailedGate, rej.Reason))
	PrintKeyValue("Message", rej.Message, 12)
	if rej.ExistingSignalID != "" {
		PrintKeyValue("Existing", rej.ExistingSignalID, 12)
	}
	return nil
}

func runKillZone(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	w := a.engine.KillZone()
	if jsonOutput {
		return printJSON(w)
	}

	PrintHeader("Kill Zone")
	PrintKeyValue("Now (UTC)", w.At.Format("2006-01-02 15:04"), 12)
	PrintKeyValue("Current", string(w.CurrentZone), 12)
	PrintKeyValue("Active", strconv.FormatBool(w.IsActive), 12)
	PrintKeyValue("Volatility", string(w.Volatility), 12)
	PrintKeyValue("Next", fmt.Sprintf("%s in %dm", w.NextZone, w.TimeToNextZoneMinutes), 12)
	if len(w.RecommendedInstruments) > 0 {
		PrintKeyValue("Instruments", fmt.Sprint(w.RecommendedInstruments), 12)
	}
	return nil
}

func printAnalysis(res *engine.Analysis) {
	if res == nil {
		return
	}
	c := res.Confluence

	PrintHeader(fmt.Sprintf("%s  %d/100  %s", res.Symbol, c.CompositeScore, res.Quality))
	widths := []int{4, 12, 5, 4, 5, 48}
	PrintTableHeader([]string{"ID", "Layer", "Score", "Pass", "Bias", "Rationale"}, widths)
	for _, l := range c.PerLayer {
		PrintTableRow([]string{
			strconv.Itoa(int(l.LayerID)),
			string(l.Key),
			strconv.Itoa(l.Score),
			passMark(l.Passed),
			string(l.Bias),
			truncate(l.Rationale, 48),
		}, widths)
	}
	PrintSeparator()

	v := res.Validation
	PrintKeyValue("Raw score", strconv.Itoa(c.RawScore), 14)
	if c.KillZonePenaltyApplied {
		PrintKeyValue("Penalty", fmt.Sprintf("-%d (%s)", c.Penalty, res.KillZone.CurrentZone), 14)
	}
	PrintKeyValue("Passed layers", fmt.Sprintf("%d / %d required", v.PassedLayers, v.RequiredMinimum), 14)
	if len(v.CriticalLayersFailed) > 0 {
		PrintKeyValue("Critical fail", fmt.Sprint(v.CriticalLayersFailed), 14)
	}
	PrintKeyValue("Gate", passMark(v.Passed), 14)
	PrintKeyValue("Direction", fmt.Sprintf("%s (long %d / short %d)", res.Direction, res.LongWeight, res.ShortWeight), 14)
	if res.Cached {
		PrintKeyValue("Source", "cache", 14)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
