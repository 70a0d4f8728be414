package riskconfig

import (
	"fmt"
	"math"

	"github.com/wonny/aegis-risk/internal/risk"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.ModelID == "" {
		return ValidationError{"meta.model_id", "required"}
	}

	// === Validation ===
	if cfg.Validation.WeightTolerance <= 0 || cfg.Validation.WeightTolerance > 0.5 {
		return ValidationError{"validation.weight_tolerance", "must be in (0, 0.5]"}
	}
	if cfg.Validation.MinObservations < 2 {
		return ValidationError{"validation.min_observations", "must be >= 2"}
	}

	// === VaR ===
	if err := risk.ValidateConfig(cfg.RiskConfig()); err != nil {
		return ValidationError{"var", err.Error()}
	}

	// === Stress ===
	if cfg.Stress.DefaultDuration <= 0 || cfg.Stress.DefaultDuration > 50 {
		return ValidationError{"stress.default_duration", "must be in (0, 50]"}
	}
	seen := make(map[string]bool, len(cfg.Stress.Scenarios))
	for i, sc := range cfg.Stress.Scenarios {
		field := fmt.Sprintf("stress.scenarios[%d]", i)
		if sc.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if seen[sc.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate scenario %q", sc.Name)}
		}
		seen[sc.Name] = true

		if err := validatePctRange(sc.Probability, field+".probability"); err != nil {
			return err
		}
		if sc.Shocks.EquityPct < -100 {
			return ValidationError{field + ".shocks.equity_pct", "must be >= -100"}
		}
		if sc.Shocks.FXPct < -100 {
			return ValidationError{field + ".shocks.fx_pct", "must be >= -100"}
		}
	}

	// === Attribution ===
	v := cfg.Attribution.FactorVols
	vols := []struct {
		name string
		vol  float64
	}{{"market", v.Market}, {"rates", v.Rates}, {"credit", v.Credit}, {"fx", v.FX}}
	for _, fv := range vols {
		if fv.vol < 0 || math.IsNaN(fv.vol) {
			return ValidationError{"attribution.factor_vols." + fv.name, "must be >= 0"}
		}
	}
	if cfg.Attribution.Confidence <= 0.5 || cfg.Attribution.Confidence >= 1 {
		return ValidationError{"attribution.confidence", "must be in (0.5, 1)"}
	}

	// === Liquidity ===
	if cfg.Liquidity.ParticipationRate <= 0 || cfg.Liquidity.ParticipationRate > 1 {
		return ValidationError{"liquidity.participation_rate", "must be in (0, 1]"}
	}
	if cfg.Liquidity.SpreadScale <= 0 {
		return ValidationError{"liquidity.spread_scale", "must be > 0"}
	}
	if cfg.Liquidity.DaysScale <= 0 {
		return ValidationError{"liquidity.days_scale", "must be > 0"}
	}

	// === Backtest ===
	if cfg.Backtest.PeriodsPerYear <= 0 {
		return ValidationError{"backtest.periods_per_year", "must be > 0"}
	}
	if cfg.Backtest.RiskFreeRate < -0.1 || cfg.Backtest.RiskFreeRate > 0.5 {
		return ValidationError{"backtest.risk_free_rate", "must be in [-0.1, 0.5]"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	mc := cfg.VaR.MonteCarlo
	if mc.NumSimulations < 5000 {
		warnings = append(warnings, Warning{
			Code:    "LOW_SIMULATIONS",
			Message: "Monte Carlo < 5000회: 99% 꼬리 추정 불안정",
		})
	}
	if mc.MaxSimulations > 0 && mc.NumSimulations > mc.MaxSimulations {
		warnings = append(warnings, Warning{
			Code:    "SIMULATIONS_CAPPED",
			Message: fmt.Sprintf("num_simulations=%d > max_simulations=%d: 상한으로 잘림", mc.NumSimulations, mc.MaxSimulations),
		})
	}
	if mc.Budget == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_MC_BUDGET",
			Message: "Monte Carlo 시간 예산 없음: 실행 타임아웃에만 의존",
		})
	}

	if len(cfg.Stress.Scenarios) == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_SCENARIOS",
			Message: "사전정의 스트레스 시나리오 없음",
		})
	}

	if cfg.Validation.MinObservations < 60 {
		warnings = append(warnings, Warning{
			Code:    "SHORT_LOOKBACK",
			Message: fmt.Sprintf("min_observations=%d < 60: 99%% 과거 VaR 신뢰도 낮음", cfg.Validation.MinObservations),
		})
	}

	return warnings
}

// === Helper Functions ===

// validatePctRange는 확률 값이 0~1 범위인지 검증
func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 1 || math.IsNaN(pct) {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}
