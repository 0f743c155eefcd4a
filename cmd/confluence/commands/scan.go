package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// scanCmd runs one generate cycle for every configured symbol
var scanCmd = &cobra.Command{
	Use:   "scan [symbols...]",
	Short: "전체 심볼 1회 스캔",
	Long: `설정된 모든 심볼(또는 인자로 준 심볼)에 대해 시그널 생성을 한 번 시도합니다.
다른 인스턴스가 같은 심볼을 스캔 중이면 건너뜁니다.

Example:
  go run ./cmd/confluence scan
  go run ./cmd/confluence scan EURUSD XAUUSD`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	symbols := a.engineCfg.NormalizedSymbols()
	if len(args) > 0 {
		symbols = make([]string, 0, len(args))
		for _, s := range args {
			symbols = append(symbols, normalizeArg(s))
		}
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols configured")
	}

	widths := []int{8, 10, 6, 36, 10}
	PrintTableHeader([]string{"Symbol", "Result", "Score", "Detail", "Took"}, widths)

	var published, failed int
	for _, out := range a.scanner.ScanAll(cmd.Context(), symbols) {
		row := []string{out.Symbol, "", "-", "", out.Duration.Round(time.Millisecond).String()}
		switch {
		case out.Skipped:
			row[1], row[3] = "skipped", "scan in flight"
		case out.Err != nil:
			failed++
			row[1], row[3] = "error", truncate(out.Err.Error(), 36)
		case out.Result == nil:
			row[1] = "-"
		case out.Result.Signal != nil:
			published++
			row[1], row[3] = "published", out.Result.Signal.ID
		case out.Result.Rejection != nil:
			row[1], row[3] = "rejected", string(out.Result.Rejection.Reason)
		}
		if out.Result != nil && out.Result.Analysis != nil {
			row[2] = fmt.Sprint(out.Result.Analysis.Confluence.CompositeScore)
		}
		PrintTableRow(row, widths)
	}

	fmt.Printf("\n%d symbol(s), %d published, %d error(s)\n", len(symbols), published, failed)
	if failed > 0 {
		return fmt.Errorf("%d scan(s) failed", failed)
	}
	return nil
}
