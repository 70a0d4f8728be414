package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-risk/internal/stress"
)

// scenariosCmd represents the scenarios command
var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "스트레스 시나리오 라이브러리",
	Long: `리스크 모델에 정의된 시나리오 목록을 출력합니다.
--demo 또는 --file을 주면 해당 스냅샷에 시나리오를 적용합니다.

Example:
  go run ./cmd/riskd scenarios
  go run ./cmd/riskd scenarios --demo 42
  go run ./cmd/riskd scenarios --model configs/risk_model.yaml --file book.yaml`,
	RunE: runScenarios,
}

var scenariosInput snapshotFlags

func init() {
	rootCmd.AddCommand(scenariosCmd)

	// Flags
	scenariosCmd.Flags().StringVar(&scenariosInput.file, "file", "", "적용할 스냅샷 파일")
	scenariosCmd.Flags().Int64Var(&scenariosInput.demo, "demo", 0, "적용할 데모 포트폴리오 seed")
}

func runScenarios(cmd *cobra.Command, args []string) error {
	rt, err := newApp(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	scenarios := rt.model.Stress.Scenarios

	PrintHeader(out, "Stress Scenario Library", [][2]string{
		{"Model", fmt.Sprintf("%s v%s", rt.model.Meta.ModelID, rt.model.Meta.Version)},
		{"Scenarios", fmt.Sprintf("%d", len(scenarios))},
	})

	widths := []int{24, 8, 8, 8, 8, 6}
	PrintTableHeader(out, []string{"Scenario", "Equity", "Yield", "Spread", "FX", "Prob"}, widths)
	for _, s := range scenarios {
		PrintTableRow(out, []string{
			s.Name,
			fmt.Sprintf("%+.1f%%", s.Shocks.EquityPct),
			fmt.Sprintf("%+.0fbp", s.Shocks.BondYieldBps),
			fmt.Sprintf("%+.0fbp", s.Shocks.CreditSpreadBps),
			fmt.Sprintf("%+.1f%%", s.Shocks.FXPct),
			fmt.Sprintf("%.0f%%", s.Probability*100),
		}, widths)
	}

	if scenariosInput.file == "" && scenariosInput.demo == 0 {
		return nil
	}

	snap, source, err := scenariosInput.load(context.Background(), rt)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	results, status := stress.NewEngine(rt.model.StressConfig()).Run(snap, scenarios)

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Applied to %s (gross %s)\n", source, money(snap.GrossValue()))
	for _, w := range status.Warnings {
		PrintWarning(out, w)
	}
	printStress(out, results)
	return nil
}
