package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-risk/internal/contracts"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "리스크 분석 1회 실행",
	Long: `스냅샷 하나를 분석하고 결과를 출력합니다.

입력 우선순위:
  --file   JSON/YAML 스냅샷 파일
  --demo   내장 데모 포트폴리오 (seed)
  (없음)   RISK_SNAPSHOT_SOURCE 설정 소스 (file, postgres, http)

잘못된 입력(InvalidInput)이면 분석을 실행하지 않고 종료 코드 1.

Example:
  go run ./cmd/riskd analyze --demo 42
  go run ./cmd/riskd analyze --file snapshot.yaml
  go run ./cmd/riskd analyze --file snapshot.json --json > result.json`,
	RunE: runAnalyze,
}

var (
	analyzeInput snapshotFlags
	analyzeJSON  bool
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Flags
	analyzeCmd.Flags().StringVar(&analyzeInput.file, "file", "", "스냅샷 파일 (.json, .yaml)")
	analyzeCmd.Flags().Int64Var(&analyzeInput.demo, "demo", 0, "데모 포트폴리오 seed (0 = 사용 안 함)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "결과를 JSON으로 출력")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	rt, err := newApp(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	o, err := rt.orchestrator()
	if err != nil {
		return err
	}

	ctx := context.Background()
	snap, source, err := analyzeInput.load(ctx, rt)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	result, runErr := o.Run(ctx, snap)

	out := cmd.OutOrStdout()
	if analyzeJSON {
		if err := PrintJSON(out, result); err != nil {
			return err
		}
	} else {
		PrintReport(out, source, result)
	}

	if runErr != nil {
		if errors.Is(runErr, contracts.ErrInvalidInput) {
			fmt.Fprintln(os.Stderr, "snapshot rejected:", runErr)
		}
		return runErr
	}
	return nil
}
