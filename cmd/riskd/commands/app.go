package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-risk/internal/api/handlers"
	"github.com/wonny/aegis-risk/internal/brain"
	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/metrics"
	"github.com/wonny/aegis-risk/internal/riskconfig"
	"github.com/wonny/aegis-risk/internal/scheduler"
	"github.com/wonny/aegis-risk/internal/snapshot"
	"github.com/wonny/aegis-risk/pkg/config"
	"github.com/wonny/aegis-risk/pkg/database"
	"github.com/wonny/aegis-risk/pkg/logger"
	"github.com/wonny/aegis-risk/pkg/redis"
)

// app 커맨드 공통 의존성
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	model   *riskconfig.Config
	metrics *metrics.Metrics
	redis   *redis.Client
	db      *database.DB
}

// newApp loads env config, logger and the risk model
// DB는 postgres 소스일 때만 연결
func newApp(needDB bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	path := modelFile
	if path == "" {
		path = cfg.Risk.ModelFile
	}
	model, _, err := riskconfig.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load risk model: %w", err)
	}
	for _, w := range riskconfig.Warn(model) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	rt := &app{cfg: cfg, log: log, model: model}
	if cfg.MetricsEnabled {
		rt.metrics = metrics.New()
	}

	rc, err := redis.New(cfg)
	if err != nil {
		// 캐시는 선택 사항
		log.WithError(err).Warn("Redis unavailable, reference cache disabled")
	} else {
		rt.redis = rc
	}

	if needDB || cfg.Risk.SnapshotSource == config.SourcePostgres {
		db, err := database.New(cfg)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		rt.db = db
		rt.metrics.WatchPool(db.Stats)
		log.Info("Connected to database")
	}

	return rt, nil
}

// Close releases connections
func (rt *app) Close() {
	if rt.db != nil {
		rt.db.Close()
	}
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
}

// orchestrator builds the analysis orchestrator
func (rt *app) orchestrator() (*brain.Orchestrator, error) {
	return brain.NewOrchestrator(rt.model, brain.Options{
		MaxParallel: rt.cfg.Risk.MaxParallel,
		RunTimeout:  rt.cfg.Risk.RunTimeout,
		Metrics:     rt.metrics,
	}, rt.log)
}

// source builds the configured snapshot source
func (rt *app) source() (snapshot.Source, error) {
	return snapshot.NewSource(rt.cfg, snapshot.Deps{
		DB:     rt.db,
		Redis:  rt.redis,
		Logger: rt.log,
	})
}

// resultCache returns the redis cache for published results (nil when redis is off)
func (rt *app) resultCache() *redis.Cache {
	if rt.redis == nil || !rt.redis.Enabled() {
		return nil
	}
	return redis.NewCache(rt.redis, "aegis-risk")
}

// refreshJob builds the scheduled refresh job for the configured source
func (rt *app) refreshJob(o *brain.Orchestrator) (*scheduler.RefreshJob, error) {
	src, err := rt.source()
	if err != nil {
		return nil, err
	}
	job := scheduler.NewRefreshJob(src, o, rt.cfg.Risk.RefreshSchedule, rt.log)
	if cache := rt.resultCache(); cache != nil {
		job.WithResultCache(cache, redis.TTLShort)
	}
	return job, nil
}

// healthDeps lists the connected dependencies checked by GET /health
func (rt *app) healthDeps() map[string]handlers.Pinger {
	deps := map[string]handlers.Pinger{}
	if rt.db != nil {
		deps["database"] = rt.db
	}
	if rt.redis.Enabled() {
		deps["redis"] = rt.redis
	}
	return deps
}

// newScheduler builds a scheduler whose job timeout follows the run timeout
func (rt *app) newScheduler() *scheduler.Scheduler {
	opts := scheduler.DefaultOptions()
	opts.JobTimeout = rt.cfg.Risk.RunTimeout + 30*time.Second
	return scheduler.New(rt.log, opts)
}

// snapshotFlags 스냅샷 입력 플래그 (--demo / --file / 설정된 소스)
type snapshotFlags struct {
	demo int64
	file string
}

// load resolves the snapshot from flags, falling back to the configured source
func (f snapshotFlags) load(ctx context.Context, rt *app) (*contracts.Snapshot, string, error) {
	switch {
	case f.file != "":
		src := snapshot.NewFileSource(f.file)
		snap, err := src.Load(ctx)
		return snap, src.Name(), err
	case f.demo != 0:
		return snapshot.Demo(f.demo), fmt.Sprintf("demo:%d", f.demo), nil
	}

	src, err := rt.source()
	if err != nil {
		return nil, "", err
	}
	snap, err := src.Load(ctx)
	return snap, src.Name(), err
}
