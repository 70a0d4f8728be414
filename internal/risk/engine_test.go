package risk

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/correlation"
)

// normalSnapshot builds n positions with iid-normal returns sharing a common factor
func normalSnapshot(seed int64, n, obs int) *contracts.Snapshot {
	rng := rand.New(rand.NewSource(seed))
	snap := &contracts.Snapshot{}
	snap.Returns = make([][]float64, n)
	for i := 0; i < n; i++ {
		snap.Positions = append(snap.Positions, contracts.Position{
			Symbol:     string(rune('A' + i)),
			Quantity:   100,
			Price:      100,
			Weight:     1.0 / float64(n),
			AssetClass: contracts.AssetEquity,
			Beta:       1,
			Volatility: 0.2,
		})
		snap.Returns[i] = make([]float64, obs)
	}
	for t := 0; t < obs; t++ {
		common := rng.NormFloat64()
		for i := 0; i < n; i++ {
			snap.Returns[i][t] = 0.01 * (0.6*common + 0.8*rng.NormFloat64())
		}
	}
	return snap
}

func testConfig(seed int64) Config {
	cfg := DefaultConfig()
	cfg.MonteCarlo.Seed = seed
	cfg.MonteCarlo.Budget = 0
	return cfg
}

func compute(t *testing.T, e *Engine, snap *contracts.Snapshot) (*contracts.VaRMetrics, contracts.Status) {
	t.Helper()
	model, err := correlation.Estimate(snap.Symbols(), snap.Returns)
	require.NoError(t, err)

	metrics, status, err := e.Compute(context.Background(), snap, model)
	require.NoError(t, err)
	require.True(t, status.Available)
	return metrics, status
}

func TestEngine_Compute_Properties(t *testing.T) {
	snap := normalSnapshot(1, 4, 252)
	metrics, _ := compute(t, NewEngine(testConfig(7)), snap)

	for name, est := range map[string]contracts.VaREstimate{
		"historical": metrics.Historical,
		"parametric": metrics.Parametric,
		"montecarlo": metrics.MonteCarlo,
	} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, est.Available)
			assert.GreaterOrEqual(t, est.VaR99_1d, est.VaR95_1d)
			assert.GreaterOrEqual(t, est.VaR99_10d, est.VaR95_10d)
			assert.GreaterOrEqual(t, est.CVaR95_1d, est.VaR95_1d)
			assert.GreaterOrEqual(t, est.CVaR99_1d, est.VaR99_1d)
			assert.InDelta(t, est.VaR95_1d*math.Sqrt(10), est.VaR95_10d, 1e-6)
			assert.InDelta(t, est.VaR99_1d*math.Sqrt(10), est.VaR99_10d, 1e-6)
		})
	}

	assert.Equal(t, metrics.Historical.CVaR95_1d, metrics.ExpectedShortfall)
	assert.Equal(t, 40000.0, metrics.PortfolioValue)
	assert.Equal(t, 10000, metrics.MonteCarlo.Simulations)
	assert.Equal(t, int64(7), metrics.MonteCarlo.Seed)

	sum := 0.0
	for _, c := range metrics.ComponentVaR {
		sum += c
	}
	assert.InDelta(t, metrics.Parametric.VaR95_1d, sum, 1e-6, "Σ component VaR == parametric VaR")
	assert.Len(t, metrics.ComponentVaR, 4)
}

func TestEngine_Compute_Idempotent(t *testing.T) {
	snap := normalSnapshot(2, 3, 120)
	e := NewEngine(testConfig(99))

	m1, _ := compute(t, e, snap)
	m2, _ := compute(t, e, snap)

	assert.Equal(t, m1.Historical, m2.Historical)
	assert.Equal(t, m1.Parametric, m2.Parametric)
	// 동일 seed → 동일 Monte Carlo
	assert.Equal(t, m1.MonteCarlo, m2.MonteCarlo)
}

func TestEngine_MonteCarloConvergesToParametric(t *testing.T) {
	snap := normalSnapshot(3, 3, 500)
	cfg := testConfig(12345)
	cfg.MonteCarlo.NumSimulations = 200000

	metrics, _ := compute(t, NewEngine(cfg), snap)

	rel := math.Abs(metrics.MonteCarlo.VaR95_1d-metrics.Parametric.VaR95_1d) / metrics.Parametric.VaR95_1d
	assert.Less(t, rel, 0.03, "MC VaR95 should be within 3%% of parametric, got %.4f", rel)
}

func TestEngine_PerfectCorrelationNoDiversification(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	obs := 250
	base := make([]float64, obs)
	for t := range base {
		base[t] = 0.02 * rng.NormFloat64()
	}

	snap := &contracts.Snapshot{
		Positions: []contracts.Position{
			{Symbol: "A", Quantity: 50, Price: 100, Weight: 0.5, Volatility: 0.32},
			{Symbol: "B", Quantity: 50, Price: 100, Weight: 0.5, Volatility: 0.32},
		},
		Returns: [][]float64{base, append([]float64(nil), base...)},
	}

	model, err := correlation.Estimate(snap.Symbols(), snap.Returns)
	require.NoError(t, err)

	metrics, status, err := NewEngine(testConfig(1)).Compute(context.Background(), snap, model)
	require.NoError(t, err)

	// σ_p == single-instrument σ × portfolio value
	assert.InDelta(t, model.Vols[0]*10000, metrics.DailyVolatility, 1e-9)
	// singular Σ → eigen fallback
	assert.True(t, status.Degraded)
	assert.True(t, metrics.MonteCarlo.Available)
}

func TestEngine_MonteCarloTimeout(t *testing.T) {
	snap := normalSnapshot(4, 3, 60)
	cfg := testConfig(1)
	cfg.MonteCarlo.NumSimulations = 200000
	cfg.MonteCarlo.BatchSize = 1
	cfg.MonteCarlo.Budget = time.Nanosecond

	metrics, status := compute(t, NewEngine(cfg), snap)

	assert.False(t, metrics.MonteCarlo.Available)
	assert.True(t, metrics.Historical.Available)
	assert.True(t, metrics.Parametric.Available)
	assert.True(t, status.Degraded)
	assert.NotEmpty(t, status.Warnings)
}

func TestEngine_CancelledContext(t *testing.T) {
	snap := normalSnapshot(5, 2, 60)
	model, err := correlation.Estimate(snap.Symbols(), snap.Returns)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, status, err := NewEngine(testConfig(1)).Compute(ctx, snap, model)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, status.Available)
}

func TestEngine_RunDeadlineKeepsClosedForm(t *testing.T) {
	snap := normalSnapshot(6, 3, 60)
	model, err := correlation.Estimate(snap.Symbols(), snap.Returns)
	require.NoError(t, err)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	metrics, status, err := NewEngine(testConfig(1)).Compute(ctx, snap, model)
	require.NoError(t, err)
	require.NotNil(t, metrics)
	assert.True(t, status.Available)
	assert.True(t, status.Degraded)
	assert.True(t, metrics.Historical.Available)
	assert.True(t, metrics.Parametric.Available)
	assert.False(t, metrics.MonteCarlo.Available)
}

func TestEngine_NetAndGrossValue(t *testing.T) {
	snap := normalSnapshot(8, 3, 60)
	snap.Positions[2].Quantity = -100

	metrics, _ := compute(t, NewEngine(testConfig(1)), snap)

	assert.InDelta(t, 30000, metrics.PortfolioValue, 1e-9)
	assert.InDelta(t, 10000, metrics.NetValue, 1e-9)
}

func TestEngine_SupersededDropsSection(t *testing.T) {
	snap := normalSnapshot(7, 2, 60)
	model, err := correlation.Estimate(snap.Symbols(), snap.Returns)
	require.NoError(t, err)

	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(contracts.ErrRunSuperseded)

	metrics, status, err := NewEngine(testConfig(1)).Compute(ctx, snap, model)
	require.Error(t, err)
	assert.Nil(t, metrics)
	assert.False(t, status.Available)
}

func TestEngine_CheckLimits(t *testing.T) {
	snap := normalSnapshot(6, 2, 100)
	cfg := testConfig(1)
	cfg.Limits = RiskLimits{MaxVaR95: 0.0001, MaxCVaR95: 0.0001}

	metrics, status := compute(t, NewEngine(cfg), snap)

	assert.Len(t, metrics.LimitBreaches, 2)
	assert.False(t, status.Degraded, "limit breaches are informational")
	assert.Len(t, status.Warnings, 2)
}

func TestSimulator_SeedReproducible(t *testing.T) {
	snap := normalSnapshot(8, 3, 80)
	model, err := correlation.Estimate(snap.Symbols(), snap.Returns)
	require.NoError(t, err)

	cfg := DefaultMonteCarloConfig()
	cfg.Seed = 2024
	cfg.NumSimulations = 5000

	r1, err := NewMonteCarloSimulator(cfg).Simulate(context.Background(), model.Covariance, snap.MarketValues(), snap.Returns)
	require.NoError(t, err)
	r2, err := NewMonteCarloSimulator(cfg).Simulate(context.Background(), model.Covariance, snap.MarketValues(), snap.Returns)
	require.NoError(t, err)

	assert.Equal(t, r1.VaR95, r2.VaR95)
	assert.Equal(t, r1.VaR99, r2.VaR99)
	assert.NotEqual(t, r1.RunID, r2.RunID)

	entropy := NewMonteCarloSimulator(MonteCarloConfig{NumSimulations: 10})
	assert.NotZero(t, entropy.Seed())
}

func TestSimulator_CapAndBootstrap(t *testing.T) {
	snap := normalSnapshot(9, 2, 60)
	model, err := correlation.Estimate(snap.Symbols(), snap.Returns)
	require.NoError(t, err)

	cfg := DefaultMonteCarloConfig()
	cfg.Seed = 1
	cfg.NumSimulations = 50000
	cfg.MaxSimulations = 3000
	cfg.Method = MethodHistoricalBootstrap

	res, err := NewMonteCarloSimulator(cfg).Simulate(context.Background(), model.Covariance, snap.MarketValues(), snap.Returns)
	require.NoError(t, err)

	assert.Equal(t, 3000, res.Simulations)
	assert.True(t, res.Truncated)
	assert.Equal(t, MethodHistoricalBootstrap, res.Method)

	// bootstrap tail is bounded by the historical worst loss
	hist := CalculateVaR(PnLSeries(snap.MarketValues(), snap.Returns), 0.999999)
	assert.LessOrEqual(t, res.VaR99.VaR, hist.VaR+1e-9)
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, ValidateConfig(DefaultConfig()))

	bad := DefaultConfig()
	bad.MonteCarlo.Method = "quasi"
	assert.True(t, errors.Is(ValidateConfig(bad), contracts.ErrInvalidInput))

	bad = DefaultConfig()
	bad.MonteCarlo.BatchSize = 0
	assert.Error(t, ValidateConfig(bad))
}
