package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-risk/internal/backtest"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "전략 성과 지표 계산",
	Long: `스냅샷의 전략 수익률(strategyReturns) 또는 비중 가중 포트폴리오 수익률로
성과 지표를 계산합니다.

지표:
- 누적/연율 수익률, 연율 변동성
- Sharpe, Sortino, Calmar
- 최대 낙폭 (MDD), 승률

Example:
  go run ./cmd/riskd backtest --demo 42
  go run ./cmd/riskd backtest --file snapshot.json --risk-free 0.03`,
	RunE: runBacktest,
}

var (
	backtestInput    snapshotFlags
	backtestRiskFree float64
	backtestJSON     bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	// Flags
	backtestCmd.Flags().StringVar(&backtestInput.file, "file", "", "스냅샷 파일 (.json, .yaml)")
	backtestCmd.Flags().Int64Var(&backtestInput.demo, "demo", 0, "데모 포트폴리오 seed")
	backtestCmd.Flags().Float64Var(&backtestRiskFree, "risk-free", -1, "연 무위험 수익률 (기본: 모델 설정)")
	backtestCmd.Flags().BoolVar(&backtestJSON, "json", false, "결과를 JSON으로 출력")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	rt, err := newApp(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	snap, source, err := backtestInput.load(context.Background(), rt)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	cfg := rt.model.BacktestConfig()
	if backtestRiskFree >= 0 {
		cfg.RiskFreeRate = backtestRiskFree
	}

	result, status, err := backtest.NewEngine(cfg).Run(snap)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	out := cmd.OutOrStdout()
	if backtestJSON {
		return PrintJSON(out, map[string]interface{}{
			"backtestResult": result,
			"status":         status,
		})
	}

	PrintHeader(out, "Aegis Risk Backtest", [][2]string{
		{"Source", source},
		{"Risk-free", pct(cfg.RiskFreeRate)},
	})
	for _, w := range status.Warnings {
		PrintWarning(out, w)
	}
	printBacktest(out, result)
	return nil
}
