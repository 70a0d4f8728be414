package riskconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-risk/internal/risk"
)

func TestLoadShippedModel(t *testing.T) {
	path := "../../configs/risk_model.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("model file not found")
	}

	cfg, yamlData, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, yamlData)

	assert.Equal(t, "aegis_risk_default", cfg.Meta.ModelID)
	assert.Equal(t, 5*time.Second, cfg.VaR.MonteCarlo.Budget)
	assert.Len(t, cfg.Stress.Scenarios, 6)

	// 배포 YAML == 코드 기본값
	assert.Equal(t, Default(), cfg)

	h1, err := Hash(cfg)
	require.NoError(t, err)
	h2, err := Hash(Default())
	require.NoError(t, err)
	assert.Equal(t, h2, h1)
	assert.Len(t, h1, 64)
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	cfg, data, err := Load("")
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("meta:\n  model_id: x\n  modle_version: typo\n"))
	require.Error(t, err)
}

func TestParseRejectsEmptyDocument(t *testing.T) {
	_, err := Parse([]byte("   \n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid default", func(*Config) {}, ""},
		{"missing model id", func(c *Config) { c.Meta.ModelID = "" }, "meta.model_id"},
		{"weight tolerance", func(c *Config) { c.Validation.WeightTolerance = 0 }, "validation.weight_tolerance"},
		{"min observations", func(c *Config) { c.Validation.MinObservations = 1 }, "validation.min_observations"},
		{"mc method", func(c *Config) { c.VaR.MonteCarlo.Method = "sobol" }, "var"},
		{"duration", func(c *Config) { c.Stress.DefaultDuration = 0 }, "stress.default_duration"},
		{"scenario name", func(c *Config) { c.Stress.Scenarios[1].Name = "" }, "stress.scenarios[1].name"},
		{"duplicate scenario", func(c *Config) { c.Stress.Scenarios[2].Name = c.Stress.Scenarios[0].Name }, "stress.scenarios[2].name"},
		{"probability", func(c *Config) { c.Stress.Scenarios[0].Probability = 1.5 }, "stress.scenarios[0].probability"},
		{"equity shock", func(c *Config) { c.Stress.Scenarios[0].Shocks.EquityPct = -120 }, "stress.scenarios[0].shocks.equity_pct"},
		{"factor vol", func(c *Config) { c.Attribution.FactorVols.FX = -0.1 }, "attribution.factor_vols.fx"},
		{"confidence", func(c *Config) { c.Attribution.Confidence = 1 }, "attribution.confidence"},
		{"participation", func(c *Config) { c.Liquidity.ParticipationRate = 0 }, "liquidity.participation_rate"},
		{"spread scale", func(c *Config) { c.Liquidity.SpreadScale = 0 }, "liquidity.spread_scale"},
		{"periods", func(c *Config) { c.Backtest.PeriodsPerYear = 0 }, "backtest.periods_per_year"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var ve ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestHashChangesWithModel(t *testing.T) {
	a := Default()
	b := Default()
	b.Stress.Scenarios[0].Shocks.EquityPct = -41

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestWarn(t *testing.T) {
	cfg := Default()
	cfg.VaR.MonteCarlo.NumSimulations = 1000
	cfg.VaR.MonteCarlo.MaxSimulations = 500
	cfg.VaR.MonteCarlo.Budget = 0
	cfg.Stress.Scenarios = nil

	codes := make(map[string]bool)
	for _, w := range Warn(cfg) {
		codes[w.Code] = true
	}
	for _, code := range []string{"LOW_SIMULATIONS", "SIMULATIONS_CAPPED", "NO_MC_BUDGET", "NO_SCENARIOS", "SHORT_LOOKBACK"} {
		assert.True(t, codes[code], code)
	}
}

func TestEngineConfigs(t *testing.T) {
	cfg := Default()

	assert.Equal(t, risk.DefaultConfig(), cfg.RiskConfig())
	assert.Equal(t, 5.0, cfg.StressConfig().DefaultDuration)
	assert.Equal(t, 5.0, cfg.AttributionConfig().DefaultDuration)
	assert.Equal(t, 0.20, cfg.LiquidityConfig().ParticipationRate)
	assert.Equal(t, 252, cfg.BacktestConfig().PeriodsPerYear)

	opts := cfg.ValidateOptions()
	assert.Equal(t, 0.01, opts.WeightTolerance)
	assert.Equal(t, 30, opts.MinObservations)
}
