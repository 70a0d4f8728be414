package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/pkg/config"
	"github.com/wonny/aegis-risk/pkg/database"
	"github.com/wonny/aegis-risk/pkg/httputil"
	"github.com/wonny/aegis-risk/pkg/logger"
	"github.com/wonny/aegis-risk/pkg/redis"
)

// ErrSnapshotNotFound 요청한 포트폴리오의 스냅샷이 없음
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Source loads a portfolio snapshot for analysis
// ⭐ SSOT: 분석 입력은 Source를 통해서만 유입
type Source interface {
	Name() string
	Load(ctx context.Context) (*contracts.Snapshot, error)
}

// Deps 소스 생성에 필요한 인프라 (소스 종류별로 일부만 사용)
type Deps struct {
	DB     *database.DB
	Redis  *redis.Client
	HTTP   *httputil.Client
	Logger *logger.Logger
}

// NewSource builds the configured snapshot source
func NewSource(cfg *config.Config, deps Deps) (Source, error) {
	switch cfg.Risk.SnapshotSource {
	case config.SourceFile:
		return NewFileSource(cfg.Risk.SnapshotPath), nil

	case config.SourcePostgres:
		if deps.DB == nil {
			return nil, fmt.Errorf("postgres snapshot source requires a database connection")
		}
		return NewPostgresSource(NewPGStore(deps.DB), deps.Redis, deps.Logger, PostgresOptions{
			PortfolioID:  cfg.Risk.PortfolioID,
			ReferenceTTL: cfg.Risk.ReferenceDataTTL,
		}), nil

	case config.SourceHTTP:
		client := deps.HTTP
		if client == nil {
			client = httputil.New(cfg, deps.Logger)
		}
		if deps.Redis != nil && deps.Redis.Enabled() {
			client = client.WithRateLimiter(redis.NewRateLimiter(deps.Redis, "aegis-risk"), redis.SnapshotFetchRateLimit)
		}
		return NewHTTPSource(client, cfg.Risk.SnapshotURL), nil

	default:
		return nil, fmt.Errorf("unknown snapshot source %q", cfg.Risk.SnapshotSource)
	}
}
