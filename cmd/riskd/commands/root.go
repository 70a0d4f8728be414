package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	modelFile string
	verbose   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "riskd",
	Short: "Aegis Risk - 포트폴리오 리스크 분석 엔진",
	Long: `Aegis Risk Unified CLI

포트폴리오 스냅샷 하나로 VaR, 상관관계, 스트레스, 리스크 귀인,
유동성, 거래상대방, 백테스트 지표를 한 번에 계산합니다.

Usage:
  go run ./cmd/riskd [command]

Examples:
  go run ./cmd/riskd analyze --demo 42
  go run ./cmd/riskd analyze --file snapshot.json --json
  go run ./cmd/riskd scenarios
  go run ./cmd/riskd api
  go run ./cmd/riskd scheduler --run-now
  go run ./cmd/riskd import --file snapshot.yaml`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&modelFile, "model", "", "리스크 모델 YAML (기본: RISK_MODEL_FILE 또는 내장 모델)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (LOG_LEVEL=debug)")
}
