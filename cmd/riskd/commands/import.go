package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/snapshot"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "스냅샷을 DB에 저장",
	Long: `스냅샷 파일(또는 데모 포트폴리오)을 검증한 뒤 PostgreSQL에 저장합니다.
저장된 스냅샷은 RISK_SNAPSHOT_SOURCE=postgres 일 때 분석 입력이 됩니다.

이 명령어는:
- risk 스키마가 없으면 생성
- 스냅샷 형식 검증 (잘못된 입력은 저장하지 않음)
- 포트폴리오 ID 기준으로 저장 (미지정 시 RISK_PORTFOLIO_ID)

Example:
  go run ./cmd/riskd import --file snapshot.yaml
  go run ./cmd/riskd import --demo 42 --portfolio demo`,
	RunE: runImport,
}

var (
	importInput     snapshotFlags
	importPortfolio string
	importExport    string
)

func init() {
	rootCmd.AddCommand(importCmd)

	// Flags
	importCmd.Flags().StringVar(&importInput.file, "file", "", "스냅샷 파일 (.json, .yaml)")
	importCmd.Flags().Int64Var(&importInput.demo, "demo", 0, "데모 포트폴리오 seed")
	importCmd.Flags().StringVar(&importPortfolio, "portfolio", "", "포트폴리오 ID 덮어쓰기")
	importCmd.Flags().StringVar(&importExport, "export", "", "저장한 스냅샷을 파일로도 기록 (.json, .yaml)")
}

func runImport(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Risk Snapshot Import ===")

	if importInput.file == "" && importInput.demo == 0 {
		return fmt.Errorf("either --file or --demo is required")
	}

	rt, err := newApp(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := context.Background()

	snap, source, err := importInput.load(ctx, rt)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if importPortfolio != "" {
		snap.PortfolioID = importPortfolio
	}

	if err := snap.Validate(rt.model.ValidateOptions()); err != nil {
		return fmt.Errorf("snapshot rejected: %w", err)
	}

	if err := rt.db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	store := snapshot.NewPostgresSource(snapshot.NewPGStore(rt.db), rt.redis, rt.log, snapshot.PostgresOptions{
		PortfolioID:  rt.cfg.Risk.PortfolioID,
		ReferenceTTL: rt.cfg.Risk.ReferenceDataTTL,
	})
	if err := store.Save(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if importExport != "" {
		if err := snapshot.WriteFile(importExport, snap); err != nil {
			return fmt.Errorf("export snapshot: %w", err)
		}
	}

	printImportSummary(source, snap)
	return nil
}

func printImportSummary(source string, snap *contracts.Snapshot) {
	fmt.Println()
	PrintSuccess(os.Stdout, fmt.Sprintf("Imported %s as portfolio %q", source, snap.PortfolioID))
	fmt.Printf("   Positions     : %d\n", len(snap.Positions))
	fmt.Printf("   Observations  : %d\n", snap.Observations())
	fmt.Printf("   Gross value   : %s\n", money(snap.GrossValue()))
	fmt.Printf("   Counterparties: %d\n", len(snap.CounterpartyRef))
	fmt.Printf("   As of         : %s\n", snap.AsOf.Format("2006-01-02"))
	if importExport != "" {
		fmt.Printf("   Exported to   : %s\n", importExport)
	}
}
