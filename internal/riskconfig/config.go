package riskconfig

import (
	"time"

	"github.com/wonny/aegis-risk/internal/attribution"
	"github.com/wonny/aegis-risk/internal/backtest"
	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/liquidity"
	"github.com/wonny/aegis-risk/internal/risk"
	"github.com/wonny/aegis-risk/internal/stress"
)

// Config는 리스크 모델 파라미터 전체 설정
// ⭐ SSOT: 엔진 파라미터는 여기서만 (env는 운영 설정만)
type Config struct {
	Meta        Meta        `yaml:"meta" json:"meta"`
	Validation  Validation  `yaml:"validation" json:"validation"`
	VaR         VaR         `yaml:"var" json:"var"`
	Stress      Stress      `yaml:"stress" json:"stress"`
	Attribution Attribution `yaml:"attribution" json:"attribution"`
	Liquidity   Liquidity   `yaml:"liquidity" json:"liquidity"`
	Backtest    Backtest    `yaml:"backtest" json:"backtest"`
}

// Meta 메타 정보
type Meta struct {
	ModelID string `yaml:"model_id" json:"model_id"`
	Version string `yaml:"version" json:"version"`
}

// Validation 입력 스냅샷 검증 기준
type Validation struct {
	WeightTolerance float64 `yaml:"weight_tolerance" json:"weight_tolerance"`
	MinObservations int     `yaml:"min_observations" json:"min_observations"`
}

// VaR 설정
type VaR struct {
	MonteCarlo risk.MonteCarloConfig `yaml:"monte_carlo" json:"monte_carlo"`
	Limits     risk.RiskLimits       `yaml:"limits" json:"limits"`
}

// Stress 시나리오 라이브러리
type Stress struct {
	DefaultDuration float64                        `yaml:"default_duration" json:"default_duration"`
	Scenarios       []contracts.ScenarioDefinition `yaml:"scenarios" json:"scenarios"`
}

// Attribution 팩터 모델
type Attribution struct {
	FactorVols attribution.FactorVols `yaml:"factor_vols" json:"factor_vols"`
	Confidence float64                `yaml:"confidence" json:"confidence"`
}

// Liquidity 유동성 모델
type Liquidity struct {
	ParticipationRate float64 `yaml:"participation_rate" json:"participation_rate"`
	SpreadScale       float64 `yaml:"spread_scale" json:"spread_scale"`
	DaysScale         float64 `yaml:"days_scale" json:"days_scale"`
}

// Backtest 성과 지표
type Backtest struct {
	RiskFreeRate   float64 `yaml:"risk_free_rate" json:"risk_free_rate"`
	PeriodsPerYear int     `yaml:"periods_per_year" json:"periods_per_year"`
}

// Default returns the built-in risk model (configs/risk_model.yaml와 동일)
func Default() *Config {
	return &Config{
		Meta: Meta{
			ModelID: "aegis_risk_default",
			Version: "1.0.0",
		},
		Validation: Validation{
			WeightTolerance: 0.01,
			MinObservations: 30,
		},
		VaR: VaR{
			MonteCarlo: risk.MonteCarloConfig{
				Method:         risk.MethodParametricNormal,
				NumSimulations: 10000,
				MaxSimulations: 200000,
				BatchSize:      1000,
				Budget:         5 * time.Second,
				Seed:           0,
			},
			Limits: risk.RiskLimits{
				MaxVaR95:  0.05,
				MaxCVaR95: 0.07,
			},
		},
		Stress: Stress{
			DefaultDuration: 5.0,
			Scenarios:       DefaultScenarios(),
		},
		Attribution: Attribution{
			FactorVols: attribution.FactorVols{
				Market: 0.16,
				Rates:  0.01,
				Credit: 0.008,
				FX:     0.10,
			},
			Confidence: 0.95,
		},
		Liquidity: Liquidity{
			ParticipationRate: 0.20,
			SpreadScale:       0.005,
			DaysScale:         5,
		},
		Backtest: Backtest{
			RiskFreeRate:   0.04,
			PeriodsPerYear: 252,
		},
	}
}

// DefaultScenarios 사전정의 역사적 스트레스 시나리오
func DefaultScenarios() []contracts.ScenarioDefinition {
	return []contracts.ScenarioDefinition{
		{
			Name:             "2008 Financial Crisis",
			Description:      "Global credit freeze after the Lehman bankruptcy",
			Shocks:           contracts.Shocks{EquityPct: -40, BondYieldBps: -150, CreditSpreadBps: 400, FXPct: -10},
			Probability:      0.02,
			HistoricalAnalog: "Sep 2008 - Mar 2009",
		},
		{
			Name:             "COVID-19 Crash",
			Description:      "Pandemic liquidity shock and emergency rate cuts",
			Shocks:           contracts.Shocks{EquityPct: -34, BondYieldBps: -100, CreditSpreadBps: 250, FXPct: -5},
			Probability:      0.03,
			HistoricalAnalog: "Feb 2020 - Mar 2020",
		},
		{
			Name:             "2022 Rate Shock",
			Description:      "Inflation-driven tightening with a strong dollar",
			Shocks:           contracts.Shocks{EquityPct: -20, BondYieldBps: 250, CreditSpreadBps: 100, FXPct: 8},
			Probability:      0.05,
			HistoricalAnalog: "Jan 2022 - Oct 2022",
		},
		{
			Name:             "Dot-com Bust",
			Description:      "Technology valuation collapse and easing cycle",
			Shocks:           contracts.Shocks{EquityPct: -45, BondYieldBps: -200, CreditSpreadBps: 150, FXPct: 0},
			Probability:      0.02,
			HistoricalAnalog: "Mar 2000 - Oct 2002",
		},
		{
			Name:             "Black Monday 1987",
			Description:      "Single-day equity crash",
			Shocks:           contracts.Shocks{EquityPct: -22.6, BondYieldBps: -50, CreditSpreadBps: 50, FXPct: 0},
			Probability:      0.01,
			HistoricalAnalog: "19 Oct 1987",
		},
		{
			Name:             "EM Currency Crisis",
			Description:      "Capital flight and sharp local currency devaluation",
			Shocks:           contracts.Shocks{EquityPct: -15, BondYieldBps: 50, CreditSpreadBps: 200, FXPct: -25},
			Probability:      0.04,
			HistoricalAnalog: "1997 Asian Financial Crisis",
		},
	}
}

// =============================================================================
// Engine configs
// =============================================================================

// ValidateOptions 스냅샷 검증 옵션
func (c *Config) ValidateOptions() contracts.ValidateOptions {
	return contracts.ValidateOptions{
		WeightTolerance: c.Validation.WeightTolerance,
		MinObservations: c.Validation.MinObservations,
	}
}

// RiskConfig VaR 엔진 설정
func (c *Config) RiskConfig() risk.Config {
	return risk.Config{
		MonteCarlo: c.VaR.MonteCarlo,
		Limits:     c.VaR.Limits,
	}
}

// StressConfig 스트레스 엔진 설정
func (c *Config) StressConfig() stress.Config {
	return stress.Config{DefaultDuration: c.Stress.DefaultDuration}
}

// AttributionConfig 기여도 엔진 설정
func (c *Config) AttributionConfig() attribution.Config {
	return attribution.Config{
		FactorVols:      c.Attribution.FactorVols,
		Confidence:      c.Attribution.Confidence,
		DefaultDuration: c.Stress.DefaultDuration,
	}
}

// LiquidityConfig 유동성 엔진 설정
func (c *Config) LiquidityConfig() liquidity.Config {
	return liquidity.Config{
		ParticipationRate: c.Liquidity.ParticipationRate,
		SpreadScale:       c.Liquidity.SpreadScale,
		DaysScale:         c.Liquidity.DaysScale,
	}
}

// BacktestConfig 백테스트 엔진 설정
func (c *Config) BacktestConfig() backtest.Config {
	return backtest.Config{
		RiskFreeRate:   c.Backtest.RiskFreeRate,
		PeriodsPerYear: c.Backtest.PeriodsPerYear,
	}
}
