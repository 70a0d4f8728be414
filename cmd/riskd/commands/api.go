package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-risk/internal/api"
	"github.com/wonny/aegis-risk/internal/api/handlers"
	"github.com/wonny/aegis-risk/internal/scheduler"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `리스크 분석 REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 분석 요청 / 상태 / 최신 결과 조회
- WebSocket으로 실행 이벤트 스트리밍

Endpoints:
  GET  /health                    - Health check
  GET  /metrics                   - Prometheus 지표
  GET  /ws/risk                   - 실행 이벤트 스트림
  POST /api/v1/risk/analyze       - 스냅샷 분석 (?demo=seed)
  GET  /api/v1/risk/status        - 현재 실행 상태
  GET  /api/v1/risk/latest        - 최신 완료 결과
  GET  /api/v1/risk/scenarios     - 시나리오 라이브러리

Example:
  go run ./cmd/riskd api
  go run ./cmd/riskd api --port 8089 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT 환경변수)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "주기적 스냅샷 갱신 함께 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Risk API Server ===")

	// 1. Config, logger, model
	rt, err := newApp(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	if apiPort != "" {
		rt.cfg.Port = apiPort
	}

	// 2. Orchestrator
	o, err := rt.orchestrator()
	if err != nil {
		return err
	}

	rt.log.WithFields(map[string]interface{}{
		"port":       rt.cfg.Port,
		"env":        rt.cfg.Env,
		"model_hash": shortHash(o.ModelHash()),
	}).Info("Initializing API server")

	// 3. Optional refresh scheduler
	var sched *scheduler.Scheduler
	if apiWithScheduler {
		job, err := rt.refreshJob(o)
		if err != nil {
			return fmt.Errorf("build refresh job: %w", err)
		}
		sched = rt.newScheduler()
		if err := sched.AddJob(job); err != nil {
			return err
		}
		sched.Start()
	}

	// 4. Handlers, router, server
	riskHandler := handlers.NewRiskHandler(o, rt.cfg.Risk.AnalyzeRPS, rt.cfg.Risk.AnalyzeBurst, rt.log)
	streamHandler := handlers.NewStreamHandler(o, rt.log)
	healthHandler := handlers.NewHealthHandler(o, rt.healthDeps(), rt.log)
	router := api.NewRouter(riskHandler, streamHandler, healthHandler, rt.metrics, rt.log)
	server := api.New(rt.cfg, rt.log, router)

	// 5. Serve until interrupted; Run drains in-flight requests
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt.log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", rt.cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	if rt.metrics != nil {
		fmt.Println("  GET  /metrics")
	}
	fmt.Println("  GET  /ws/risk")
	fmt.Println("  POST /api/v1/risk/analyze")
	fmt.Println("  GET  /api/v1/risk/status")
	fmt.Println("  GET  /api/v1/risk/latest")
	fmt.Println("  GET  /api/v1/risk/scenarios")
	if sched != nil {
		fmt.Printf("\nRefresh schedule: %s (%s)\n", rt.cfg.Risk.RefreshSchedule, rt.cfg.Risk.SnapshotSource)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	err = server.Run(ctx)

	if sched != nil {
		sched.Stop()
	}
	if err != nil {
		return fmt.Errorf("api server: %w", err)
	}

	rt.log.Info("Server stopped")
	return nil
}
