package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sony/gobreaker"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/pkg/database"
	"github.com/wonny/aegis-risk/pkg/logger"
	"github.com/wonny/aegis-risk/pkg/redis"
)

// Store is the persistence boundary of the postgres source
type Store interface {
	LatestSnapshot(ctx context.Context, portfolioID string) ([]byte, error)
	SaveSnapshot(ctx context.Context, snap *contracts.Snapshot) error
	Counterparties(ctx context.Context, ids []string) (map[string]contracts.CounterpartyRef, error)
	MarketDepth(ctx context.Context, symbols []string) (map[string]contracts.MarketDepth, error)
}

// =============================================================================
// PGStore
// =============================================================================

// PGStore implements Store on the risk schema
type PGStore struct {
	db *database.DB
}

// NewPGStore creates a pgx-backed store
func NewPGStore(db *database.DB) *PGStore {
	return &PGStore{db: db}
}

// LatestSnapshot returns the newest payload for the portfolio
func (s *PGStore) LatestSnapshot(ctx context.Context, portfolioID string) ([]byte, error) {
	query := `
		SELECT payload
		FROM risk.snapshots
		WHERE portfolio_id = $1
		ORDER BY as_of DESC
		LIMIT 1
	`

	var payload []byte
	err := s.db.Pool.QueryRow(ctx, query, portfolioID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: portfolio %q", ErrSnapshotNotFound, portfolioID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return payload, nil
}

// SaveSnapshot upserts the snapshot payload and the reference rows it carries
// 입력 스냅샷만 저장, 분석 결과는 저장하지 않음
func (s *PGStore) SaveSnapshot(ctx context.Context, snap *contracts.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO risk.snapshots (portfolio_id, as_of, payload)
			VALUES ($1, $2, $3)
			ON CONFLICT (portfolio_id, as_of) DO UPDATE
			SET payload = EXCLUDED.payload, created_at = now()
		`
		if _, err := tx.Exec(ctx, query, snap.PortfolioID, snap.AsOf, payload); err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}

		batch := &pgx.Batch{}
		for id, ref := range snap.CounterpartyRef {
			batch.Queue(`
				INSERT INTO risk.counterparties (counterparty_id, name, probability_default, loss_given_default, additional_exposure)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (counterparty_id) DO UPDATE
				SET name = EXCLUDED.name,
					probability_default = EXCLUDED.probability_default,
					loss_given_default = EXCLUDED.loss_given_default,
					additional_exposure = EXCLUDED.additional_exposure,
					updated_at = now()
			`, id, ref.Name, ref.ProbabilityDefault, ref.LossGivenDefault, ref.AdditionalExposure)
		}
		for symbol, depth := range snap.MarketDepthRef {
			batch.Queue(`
				INSERT INTO risk.market_depth (symbol, daily_volume, market_cap, bid_ask_spread)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (symbol) DO UPDATE
				SET daily_volume = EXCLUDED.daily_volume,
					market_cap = EXCLUDED.market_cap,
					bid_ask_spread = EXCLUDED.bid_ask_spread,
					updated_at = now()
			`, symbol, depth.DailyVolume, depth.MarketCap, depth.BidAskSpread)
		}
		if batch.Len() == 0 {
			return nil
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to save reference data: %w", err)
		}
		return nil
	})
}

// Counterparties loads counterparty reference rows
func (s *PGStore) Counterparties(ctx context.Context, ids []string) (map[string]contracts.CounterpartyRef, error) {
	query := `
		SELECT counterparty_id, name, probability_default, loss_given_default, additional_exposure
		FROM risk.counterparties
		WHERE counterparty_id = ANY($1)
	`

	rows, err := s.db.Pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query counterparties: %w", err)
	}
	defer rows.Close()

	out := make(map[string]contracts.CounterpartyRef, len(ids))
	for rows.Next() {
		var (
			id  string
			ref contracts.CounterpartyRef
		)
		if err := rows.Scan(&id, &ref.Name, &ref.ProbabilityDefault, &ref.LossGivenDefault, &ref.AdditionalExposure); err != nil {
			return nil, fmt.Errorf("failed to scan counterparty: %w", err)
		}
		out[id] = ref
	}
	return out, rows.Err()
}

// MarketDepth loads market depth reference rows
func (s *PGStore) MarketDepth(ctx context.Context, symbols []string) (map[string]contracts.MarketDepth, error) {
	query := `
		SELECT symbol, daily_volume, market_cap, bid_ask_spread
		FROM risk.market_depth
		WHERE symbol = ANY($1)
	`

	rows, err := s.db.Pool.Query(ctx, query, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to query market depth: %w", err)
	}
	defer rows.Close()

	out := make(map[string]contracts.MarketDepth, len(symbols))
	for rows.Next() {
		var (
			symbol string
			depth  contracts.MarketDepth
		)
		if err := rows.Scan(&symbol, &depth.DailyVolume, &depth.MarketCap, &depth.BidAskSpread); err != nil {
			return nil, fmt.Errorf("failed to scan market depth: %w", err)
		}
		out[symbol] = depth
	}
	return out, rows.Err()
}

// =============================================================================
// PostgresSource
// =============================================================================

// PostgresOptions 포스트그레스 소스 설정
type PostgresOptions struct {
	PortfolioID  string
	ReferenceTTL time.Duration
}

// PostgresSource loads the latest stored snapshot and fills missing reference data
// 레퍼런스 조회는 redis 캐시 → circuit breaker → DB 순서
type PostgresSource struct {
	store   Store
	cache   *redis.Cache
	breaker *gobreaker.CircuitBreaker
	opts    PostgresOptions
	logger  *logger.Logger
}

// NewPostgresSource creates a postgres-backed source
func NewPostgresSource(store Store, rc *redis.Client, log *logger.Logger, opts PostgresOptions) *PostgresSource {
	if opts.ReferenceTTL <= 0 {
		opts.ReferenceTTL = redis.TTLLong
	}

	l := log.WithComponent("snapshot.postgres")

	settings := gobreaker.Settings{
		Name:        "risk-reference",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Reference circuit breaker state changed")
		},
	}

	var cache *redis.Cache
	if rc != nil {
		cache = redis.NewCache(rc, "aegis-risk")
	}

	return &PostgresSource{
		store:   store,
		cache:   cache,
		breaker: gobreaker.NewCircuitBreaker(settings),
		opts:    opts,
		logger:  l,
	}
}

// Name returns the source identifier
func (s *PostgresSource) Name() string {
	return "postgres:" + s.opts.PortfolioID
}

// BreakerState exposes the reference circuit state
func (s *PostgresSource) BreakerState() string {
	return s.breaker.State().String()
}

// Load reads the latest snapshot and enriches missing reference data
func (s *PostgresSource) Load(ctx context.Context) (*contracts.Snapshot, error) {
	payload, err := s.store.LatestSnapshot(ctx, s.opts.PortfolioID)
	if err != nil {
		return nil, err
	}

	var snap contracts.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: stored snapshot payload: %v", contracts.ErrInvalidInput, err)
	}
	if snap.PortfolioID == "" {
		snap.PortfolioID = s.opts.PortfolioID
	}

	// 레퍼런스 누락은 치명적이지 않음: 해당 섹션이 degraded로 보고
	if err := s.fillCounterparties(ctx, &snap); err != nil {
		s.logger.WithError(err).Warn("Counterparty reference unavailable")
	}
	if err := s.fillMarketDepth(ctx, &snap); err != nil {
		s.logger.WithError(err).Warn("Market depth reference unavailable")
	}

	return &snap, nil
}

// Save stores a snapshot so later loads can pick it up
func (s *PostgresSource) Save(ctx context.Context, snap *contracts.Snapshot) error {
	if snap.PortfolioID == "" {
		snap.PortfolioID = s.opts.PortfolioID
	}
	return s.store.SaveSnapshot(ctx, snap)
}

func (s *PostgresSource) fillCounterparties(ctx context.Context, snap *contracts.Snapshot) error {
	var wanted []string
	seen := make(map[string]bool)
	for _, p := range snap.Positions {
		if p.Counterparty == "" || seen[p.Counterparty] {
			continue
		}
		seen[p.Counterparty] = true
		if _, ok := snap.CounterpartyRef[p.Counterparty]; !ok {
			wanted = append(wanted, p.Counterparty)
		}
	}
	if len(wanted) == 0 {
		return nil
	}
	sort.Strings(wanted)

	if snap.CounterpartyRef == nil {
		snap.CounterpartyRef = make(map[string]contracts.CounterpartyRef, len(wanted))
	}

	missing := make([]string, 0, len(wanted))
	for _, id := range wanted {
		var ref contracts.CounterpartyRef
		if s.cacheGet(ctx, redis.CounterpartyRefKey(id), &ref) {
			snap.CounterpartyRef[id] = ref
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return nil
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.store.Counterparties(ctx, missing)
	})
	if err != nil {
		return fmt.Errorf("%w: counterparties: %v", contracts.ErrMissingReferenceData, err)
	}

	for id, ref := range result.(map[string]contracts.CounterpartyRef) {
		snap.CounterpartyRef[id] = ref
		s.cacheSet(ctx, redis.CounterpartyRefKey(id), ref)
	}
	return nil
}

func (s *PostgresSource) fillMarketDepth(ctx context.Context, snap *contracts.Snapshot) error {
	var wanted []string
	for _, p := range snap.Positions {
		if p.Class() == contracts.AssetCash {
			continue
		}
		if _, ok := snap.MarketDepthRef[p.Symbol]; !ok {
			wanted = append(wanted, p.Symbol)
		}
	}
	if len(wanted) == 0 {
		return nil
	}

	if snap.MarketDepthRef == nil {
		snap.MarketDepthRef = make(map[string]contracts.MarketDepth, len(wanted))
	}

	missing := make([]string, 0, len(wanted))
	for _, symbol := range wanted {
		var depth contracts.MarketDepth
		if s.cacheGet(ctx, redis.MarketDepthKey(symbol), &depth) {
			snap.MarketDepthRef[symbol] = depth
			continue
		}
		missing = append(missing, symbol)
	}
	if len(missing) == 0 {
		return nil
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.store.MarketDepth(ctx, missing)
	})
	if err != nil {
		return fmt.Errorf("%w: market depth: %v", contracts.ErrMissingReferenceData, err)
	}

	for symbol, depth := range result.(map[string]contracts.MarketDepth) {
		snap.MarketDepthRef[symbol] = depth
		s.cacheSet(ctx, redis.MarketDepthKey(symbol), depth)
	}
	return nil
}

func (s *PostgresSource) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Debug("Reference cache read failed")
		return false
	}
	return found
}

func (s *PostgresSource) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.opts.ReferenceTTL); err != nil {
		s.logger.WithError(err).WithField("key", key).Debug("Reference cache write failed")
	}
}
