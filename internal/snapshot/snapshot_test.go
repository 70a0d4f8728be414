package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/pkg/config"
	"github.com/wonny/aegis-risk/pkg/httputil"
	"github.com/wonny/aegis-risk/pkg/logger"
	"github.com/wonny/aegis-risk/pkg/redis"
)

func disabledRedis(t *testing.T) *redis.Client {
	t.Helper()
	rc, err := redis.New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	return rc
}

func TestDemo_ValidAndDeterministic(t *testing.T) {
	a := Demo(42)
	b := Demo(42)

	require.NoError(t, a.Validate(contracts.DefaultValidateOptions()))
	assert.Equal(t, a, b)
	assert.Equal(t, DemoObservations, a.Observations())

	c := Demo(43)
	assert.NotEqual(t, a.Returns, c.Returns)

	sum := 0.0
	for _, w := range a.Weights() {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestFileSource_JSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	snap := Demo(7)

	for _, name := range []string{"snap.json", "snap.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteFile(path, snap))

			src := NewFileSource(path)
			got, err := src.Load(context.Background())
			require.NoError(t, err)

			assert.Equal(t, "file:"+path, src.Name())
			assert.Equal(t, snap.Symbols(), got.Symbols())
			assert.InDeltaSlice(t, snap.Returns[0], got.Returns[0], 1e-12)
			assert.Equal(t, snap.CounterpartyRef, got.CounterpartyRef)
			assert.True(t, snap.AsOf.Equal(got.AsOf))
		})
	}
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	_, err := Decode([]byte(`{"positions": [], "positons": []}`), FormatJSON)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrInvalidInput))

	_, err = Decode([]byte("positions: []\nretruns: []\n"), FormatYAML)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrInvalidInput))

	_, err = Decode([]byte(`{}`), "toml")
	require.Error(t, err)
}

func TestFileSource_Missing(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.json")).Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestHTTPSource(t *testing.T) {
	snap := Demo(3)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	}))
	defer server.Close()

	client := httputil.New(&config.Config{}, logger.NewNop()).DisableRetry()
	got, err := NewHTTPSource(client, server.URL).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap.Symbols(), got.Symbols())
}

func TestHTTPSource_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	client := httputil.New(&config.Config{}, logger.NewNop()).DisableRetry()
	_, err := NewHTTPSource(client, server.URL).Load(context.Background())

	var se *httputil.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestNewSource(t *testing.T) {
	cfg := &config.Config{Risk: config.RiskConfig{SnapshotSource: config.SourceFile, SnapshotPath: "x.json"}}
	deps := Deps{Redis: disabledRedis(t), Logger: logger.NewNop()}

	src, err := NewSource(cfg, deps)
	require.NoError(t, err)
	assert.IsType(t, &FileSource{}, src)

	cfg.Risk.SnapshotSource = config.SourceHTTP
	cfg.Risk.SnapshotURL = "http://localhost/snapshot"
	src, err = NewSource(cfg, deps)
	require.NoError(t, err)
	assert.Equal(t, "http:http://localhost/snapshot", src.Name())

	cfg.Risk.SnapshotSource = config.SourcePostgres
	_, err = NewSource(cfg, deps)
	require.Error(t, err, "postgres without a database")

	cfg.Risk.SnapshotSource = "kafka"
	_, err = NewSource(cfg, deps)
	require.Error(t, err)
}

// =============================================================================
// Postgres source (fake store)
// =============================================================================

type fakeStore struct {
	payload   []byte
	refs      map[string]contracts.CounterpartyRef
	depth     map[string]contracts.MarketDepth
	refErr    error
	refCalls  int
	saved     *contracts.Snapshot
	requested []string
}

func (f *fakeStore) LatestSnapshot(ctx context.Context, portfolioID string) ([]byte, error) {
	if f.payload == nil {
		return nil, ErrSnapshotNotFound
	}
	return f.payload, nil
}

func (f *fakeStore) SaveSnapshot(ctx context.Context, snap *contracts.Snapshot) error {
	f.saved = snap
	return nil
}

func (f *fakeStore) Counterparties(ctx context.Context, ids []string) (map[string]contracts.CounterpartyRef, error) {
	f.refCalls++
	f.requested = append(f.requested, ids...)
	if f.refErr != nil {
		return nil, f.refErr
	}
	return f.refs, nil
}

func (f *fakeStore) MarketDepth(ctx context.Context, symbols []string) (map[string]contracts.MarketDepth, error) {
	f.refCalls++
	if f.refErr != nil {
		return nil, f.refErr
	}
	return f.depth, nil
}

func storedSnapshot(t *testing.T) (*contracts.Snapshot, []byte) {
	t.Helper()
	snap := Demo(11)
	snap.PortfolioID = ""
	snap.CounterpartyRef = nil
	snap.MarketDepthRef = nil

	payload, err := json.Marshal(snap)
	require.NoError(t, err)
	return Demo(11), payload
}

func TestPostgresSource_EnrichesReference(t *testing.T) {
	full, payload := storedSnapshot(t)
	store := &fakeStore{payload: payload, refs: full.CounterpartyRef, depth: full.MarketDepthRef}

	src := NewPostgresSource(store, disabledRedis(t), logger.NewNop(), PostgresOptions{PortfolioID: "alpha"})
	got, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "alpha", got.PortfolioID)
	assert.Equal(t, full.CounterpartyRef, got.CounterpartyRef)
	assert.Equal(t, full.MarketDepthRef, got.MarketDepthRef)
	assert.Equal(t, []string{"BNY", "COINBASE", "GS"}, store.requested)
	assert.Equal(t, "closed", src.BreakerState())
}

func TestPostgresSource_ReferenceFailureDegradesGracefully(t *testing.T) {
	_, payload := storedSnapshot(t)
	store := &fakeStore{payload: payload, refErr: errors.New("connection refused")}

	src := NewPostgresSource(store, disabledRedis(t), logger.NewNop(), PostgresOptions{PortfolioID: "alpha"})

	for i := 0; i < 2; i++ {
		got, err := src.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, got.CounterpartyRef)
		assert.Empty(t, got.MarketDepthRef)
	}

	// 3 consecutive failures trip the breaker; the 4th reference call is short-circuited
	assert.Equal(t, "open", src.BreakerState())
	assert.Equal(t, 3, store.refCalls)
}

func TestPostgresSource_NotFoundAndSave(t *testing.T) {
	store := &fakeStore{}
	src := NewPostgresSource(store, nil, logger.NewNop(), PostgresOptions{PortfolioID: "beta"})

	_, err := src.Load(context.Background())
	assert.True(t, errors.Is(err, ErrSnapshotNotFound))

	snap := Demo(1)
	snap.PortfolioID = ""
	require.NoError(t, src.Save(context.Background(), snap))
	require.NotNil(t, store.saved)
	assert.Equal(t, "beta", store.saved.PortfolioID)
}
