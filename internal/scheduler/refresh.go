package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/pkg/logger"
	"github.com/wonny/aegis-risk/pkg/redis"
)

// RefreshJobName 스냅샷 갱신 작업 이름
const RefreshJobName = "risk_refresh"

// SnapshotLoader loads the latest portfolio snapshot (file, postgres, http)
type SnapshotLoader interface {
	Name() string
	Load(ctx context.Context) (*contracts.Snapshot, error)
}

// Analyzer runs one analysis; a newer call supersedes an in-flight one
type Analyzer interface {
	Run(ctx context.Context, snap *contracts.Snapshot) (*contracts.AnalysisResult, error)
}

// ResultCache stores the latest result for other readers (redis.Cache)
type ResultCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// RefreshJob reloads the snapshot and re-runs the analysis
type RefreshJob struct {
	loader   SnapshotLoader
	analyzer Analyzer
	schedule string
	cache    ResultCache
	cacheTTL time.Duration
	logger   *logger.Logger
}

// NewRefreshJob creates a new refresh job
func NewRefreshJob(loader SnapshotLoader, analyzer Analyzer, schedule string, log *logger.Logger) *RefreshJob {
	return &RefreshJob{
		loader:   loader,
		analyzer: analyzer,
		schedule: schedule,
		logger:   log.WithComponent("scheduler.refresh"),
	}
}

// WithResultCache publishes each completed result under result:latest:<portfolio>
func (j *RefreshJob) WithResultCache(cache ResultCache, ttl time.Duration) *RefreshJob {
	j.cache = cache
	j.cacheTTL = ttl
	return j
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return RefreshJobName
}

// Schedule returns the cron schedule
func (j *RefreshJob) Schedule() string {
	return j.schedule
}

// Run executes the refresh
func (j *RefreshJob) Run(ctx context.Context) error {
	j.logger.WithField("source", j.loader.Name()).Debug("Loading snapshot")

	snap, err := j.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot from %s: %w", j.loader.Name(), err)
	}

	result, err := j.analyzer.Run(ctx, snap)
	if err != nil {
		return fmt.Errorf("analyze snapshot: %w", err)
	}

	fields := map[string]interface{}{
		"run_id":      result.RunID,
		"duration_ms": result.DurationMs,
		"degraded":    result.Degraded(),
	}
	if v := result.VaRMetrics; v != nil {
		fields["var95_1d"] = v.Historical.VaR95_1d
	}
	j.logger.WithFields(fields).Info("Scheduled risk refresh completed")

	if j.cache != nil {
		key := redis.LatestResultKey(result.PortfolioID)
		if err := j.cache.Set(ctx, key, result, j.cacheTTL); err != nil {
			// 캐시 실패는 작업 실패가 아님
			j.logger.WithError(err).Warn("Failed to cache latest result")
		}
	}

	return nil
}
