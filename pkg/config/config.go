package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Snapshot sources supported by the risk service
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceHTTP     = "http"
)

// Config holds all runtime configuration
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
// 리스크 모델 파라미터는 internal/riskconfig (YAML)
type Config struct {
	Port string
	Env  string // development, staging, production

	Database DatabaseConfig
	Redis    RedisConfig
	Risk     RiskConfig

	LogLevel  string
	LogFormat string // json, console

	MetricsEnabled bool
}

// RedisConfig 캐시/레이트리밋용 Redis (선택)
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, r.Port)
}

// DatabaseConfig PostgreSQL 연결 및 풀 설정
type DatabaseConfig struct {
	URL string

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RiskConfig 분석 서비스 런타임 설정
type RiskConfig struct {
	ModelFile        string        // risk-model YAML (비어 있으면 기본값)
	SnapshotSource   string        // file, postgres, http
	SnapshotPath     string        // file 소스 경로
	SnapshotURL      string        // http 소스 엔드포인트
	PortfolioID      string        // postgres 소스 포트폴리오 키
	RunTimeout       time.Duration // 실행 전체 제한 시간
	MaxParallel      int           // 실행당 동시 서브엔진 수
	RefreshSchedule  string        // 스냅샷 갱신 cron (초 단위 포함)
	AnalyzeRPS       float64       // 분석 요청 초당 허용량 (0 = 무제한)
	AnalyzeBurst     int
	ReferenceDataTTL time.Duration // 거래상대방/시장심도 참조 데이터 redis TTL
}

// Load reads .env (if present) and the process environment
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: str("PORT", "8089"),
		Env:  str("ENV", "development"),

		Database: DatabaseConfig{
			URL:             str("DATABASE_URL", ""),
			MaxConns:        num("DB_MAX_CONNS", 25, strconv.Atoi),
			MinConns:        num("DB_MIN_CONNS", 5, strconv.Atoi),
			MaxConnLifetime: num("DB_MAX_CONN_LIFETIME", time.Hour, time.ParseDuration),
			MaxConnIdleTime: num("DB_MAX_CONN_IDLE_TIME", 30*time.Minute, time.ParseDuration),
		},

		Redis: RedisConfig{
			Host:     str("REDIS_HOST", "localhost"),
			Port:     str("REDIS_PORT", "6379"),
			Password: str("REDIS_PASSWORD", ""),
			DB:       num("REDIS_DB", 0, strconv.Atoi),
			Enabled:  num("REDIS_ENABLED", false, strconv.ParseBool),
		},

		Risk: RiskConfig{
			ModelFile:        str("RISK_MODEL_FILE", ""),
			SnapshotSource:   str("RISK_SNAPSHOT_SOURCE", SourceFile),
			SnapshotPath:     str("RISK_SNAPSHOT_PATH", "snapshot.json"),
			SnapshotURL:      str("RISK_SNAPSHOT_URL", ""),
			PortfolioID:      str("RISK_PORTFOLIO_ID", "default"),
			RunTimeout:       num("RISK_RUN_TIMEOUT", 30*time.Second, time.ParseDuration),
			MaxParallel:      num("RISK_MAX_PARALLEL", 7, strconv.Atoi),
			RefreshSchedule:  str("RISK_REFRESH_SCHEDULE", "0 */5 * * * *"),
			AnalyzeRPS:       num("RISK_ANALYZE_RPS", 2.0, parseFloat),
			AnalyzeBurst:     num("RISK_ANALYZE_BURST", 4, strconv.Atoi),
			ReferenceDataTTL: num("RISK_REFERENCE_TTL", time.Hour, time.ParseDuration),
		},

		LogLevel:  str("LOG_LEVEL", "info"),
		LogFormat: str("LOG_FORMAT", "json"),

		MetricsEnabled: num("METRICS_ENABLED", true, strconv.ParseBool),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case "development", "staging", "production":
	default:
		errs = append(errs, fmt.Errorf("ENV must be one of: development, staging, production (got %q)", c.Env))
	}

	switch c.Risk.SnapshotSource {
	case SourceFile:
		if c.Risk.SnapshotPath == "" {
			errs = append(errs, errors.New("RISK_SNAPSHOT_PATH is required for file source"))
		}
	case SourcePostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres source"))
		}
	case SourceHTTP:
		if c.Risk.SnapshotURL == "" {
			errs = append(errs, errors.New("RISK_SNAPSHOT_URL is required for http source"))
		}
	default:
		errs = append(errs, fmt.Errorf("RISK_SNAPSHOT_SOURCE must be one of: file, postgres, http (got %q)", c.Risk.SnapshotSource))
	}

	if c.Risk.MaxParallel <= 0 {
		errs = append(errs, errors.New("RISK_MAX_PARALLEL must be > 0"))
	}
	if c.Risk.RunTimeout <= 0 {
		errs = append(errs, errors.New("RISK_RUN_TIMEOUT must be > 0"))
	}
	if c.Risk.AnalyzeRPS < 0 {
		errs = append(errs, errors.New("RISK_ANALYZE_RPS must be >= 0"))
	}

	return errors.Join(errs...)
}

// loadEnvFile loads the first .env found (cwd, then next to the binary)
func loadEnvFile() {
	paths := []string{".env"}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		paths = append(paths, filepath.Join(dir, ".env"), filepath.Join(dir, "..", ".env"))
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

func str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// num parses key with parse; unset or malformed values fall back to def
func num[T any](key string, def T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
