package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	storeFlag    string
	engineConfig string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "confluence",
	Short: "Confluence - 10-layer FX signal scoring & validation engine",
	Long: `Confluence Unified CLI

10개 분석 레이어의 점수를 가중 합산하고, 게이트를 통과한 셋업만
시그널로 발행한 뒤 TP/SL/만료까지 라이프사이클을 추적합니다.

Usage:
  go run ./cmd/confluence [command]

Examples:
  go run ./cmd/confluence api
  go run ./cmd/confluence analyze EURUSD
  go run ./cmd/confluence generate GBPUSD
  go run ./cmd/confluence scheduler start
  go run ./cmd/confluence migrate`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "signal store override (postgres|memory)")
	rootCmd.PersistentFlags().StringVar(&engineConfig, "engine-config", "", "engine YAML (overrides ENGINE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs, console format)")
}
