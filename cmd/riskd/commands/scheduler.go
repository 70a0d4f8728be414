package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-risk/internal/scheduler"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스냅샷 갱신 스케줄러",
	Long: `설정된 스냅샷 소스를 주기적으로 읽어 분석을 다시 실행합니다.

등록되는 작업:
- risk_refresh: RISK_REFRESH_SCHEDULE (기본 5분마다, 초 단위 cron)

재시도 정책:
- InvalidInput: 재시도 없음
- RunSuperseded: 성공으로 기록 (새 실행이 이어받음)
- 그 외 오류: 최대 2회 재시도

Redis가 켜져 있으면 완료된 결과를 result:latest:<portfolio>에 게시합니다.

Example:
  go run ./cmd/riskd scheduler
  go run ./cmd/riskd scheduler --run-now`,
	RunE: runScheduler,
}

var schedulerRunNow bool

func init() {
	rootCmd.AddCommand(schedulerCmd)

	// Flags
	schedulerCmd.Flags().BoolVar(&schedulerRunNow, "run-now", false, "시작 시 즉시 1회 실행")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Risk Scheduler ===")

	rt, err := newApp(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	o, err := rt.orchestrator()
	if err != nil {
		return err
	}

	job, err := rt.refreshJob(o)
	if err != nil {
		return fmt.Errorf("build refresh job: %w", err)
	}

	sched := rt.newScheduler()
	if err := sched.AddJob(job); err != nil {
		return err
	}
	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for name, stat := range sched.GetJobStats() {
		next := "-"
		if stat.NextRun != nil {
			next = stat.NextRun.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("  - %s [%s] next: %s\n", name, stat.Schedule, next)
	}

	if schedulerRunNow {
		if err := sched.RunJob(scheduler.RefreshJobName); err != nil {
			return fmt.Errorf("run job: %w", err)
		}
		fmt.Println("\nInitial refresh started (running in background)")
	}

	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()

	printJobStats(sched)
	fmt.Println("Scheduler stopped")
	return nil
}

func printJobStats(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	for _, name := range sched.GetAllJobs() {
		stat := stats[name]
		fmt.Printf("\n📊 %s\n", name)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)
		if stat.LastSuccess != nil {
			fmt.Printf("   Last Success: %s\n", stat.LastSuccess.Format("2006-01-02 15:04:05"))
		}
		if stat.LastFailure != nil {
			fmt.Printf("   Last Failure: %s\n", stat.LastFailure.Format("2006-01-02 15:04:05"))
		}
	}
	fmt.Println()
}
