package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-risk/internal/brain"
	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/pkg/config"
	"github.com/wonny/aegis-risk/pkg/httputil"
	"github.com/wonny/aegis-risk/pkg/logger"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "API 서버 실행 상태 모니터링",
	Long: `실행 중인 API 서버의 분석 상태와 최신 결과 요약을 조회합니다.

표시 정보:
- State: Idle / Running / Completed / Failed
- 진행 중 / 최근 완료 Run ID
- 최신 결과의 VaR 및 섹션 상태

Example:
  go run ./cmd/riskd status
  go run ./cmd/riskd status --url http://localhost:8089 --refresh 3s`,
	RunE: runStatus,
}

var (
	statusURL     string
	statusRefresh time.Duration
)

func init() {
	rootCmd.AddCommand(statusCmd)

	// Flags
	statusCmd.Flags().StringVar(&statusURL, "url", "http://localhost:8089", "API 서버 주소")
	statusCmd.Flags().DurationVar(&statusRefresh, "refresh", 0, "갱신 간격 (0 = 1회 조회)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	client := httputil.New(cfg, logger.New(cfg)).DisableRetry()
	base := strings.TrimRight(statusURL, "/")

	if statusRefresh <= 0 {
		return displayStatus(cmd.Context(), client, base)
	}

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(statusRefresh)
	defer ticker.Stop()

	if err := displayStatus(cmd.Context(), client, base); err != nil {
		PrintError(os.Stdout, err.Error())
	}

	for {
		select {
		case <-sigChan:
			fmt.Println("\n✅ Status monitor stopped")
			return nil

		case <-ticker.C:
			// Clear screen (ANSI escape code)
			fmt.Print("\033[H\033[2J")
			fmt.Printf("Refresh: %v | Last update: %s\n", statusRefresh, time.Now().Format("15:04:05"))

			if err := displayStatus(cmd.Context(), client, base); err != nil {
				PrintError(os.Stdout, err.Error())
			}
		}
	}
}

func displayStatus(ctx context.Context, client *httputil.Client, base string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var st brain.RunStatus
	if err := client.GetJSON(ctx, base+"/api/v1/risk/status", &st); err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}

	out := os.Stdout
	PrintHeader(out, "Aegis Risk Status", [][2]string{
		{"Server", base},
		{"State", string(st.State)},
		{"Model", shortHash(st.ModelHash)},
	})
	if st.RunID != "" {
		PrintKeyValue(out, "Running", fmt.Sprintf("%s (since %s)", st.RunID, st.StartedAt.Format("15:04:05")), 12)
	}

	var latest contracts.AnalysisResult
	err := client.GetJSON(ctx, base+"/api/v1/risk/latest", &latest)
	var statusErr *httputil.StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
		PrintWarning(out, "no completed analysis yet")
		return nil
	case err != nil:
		return fmt.Errorf("fetch latest: %w", err)
	}

	fmt.Fprintln(out, "\n📋 Latest Result")
	PrintKeyValue(out, "Run ID", latest.RunID, 12)
	PrintKeyValue(out, "As of", latest.AsOf.Format("2006-01-02"), 12)
	PrintKeyValue(out, "Duration", fmt.Sprintf("%dms", latest.DurationMs), 12)
	if v := latest.VaRMetrics; v != nil {
		PrintKeyValue(out, "VaR 95% 1d", money(v.Historical.VaR95_1d), 12)
		PrintKeyValue(out, "VaR 99% 1d", money(v.Historical.VaR99_1d), 12)
	}

	for _, section := range contracts.AllSections() {
		if sectionStatus, ok := latest.Sections[section]; ok {
			PrintSection(out, section, sectionStatus)
		}
	}
	fmt.Fprintln(out)
	return nil
}
