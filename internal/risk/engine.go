package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/correlation"
)

// =============================================================================
// Engine - 순수 계산기
// =============================================================================

// Engine VaR 엔진 (순수 계산기)
// ⭐ SSOT: 스냅샷 로딩/공분산 추정은 상위 레이어(brain)에서 조립
// internal/risk는 순수 계산만 담당
type Engine struct {
	config Config
}

// NewEngine 새 VaR 엔진 생성
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// Compute VaR 섹션 계산
// Historical/Parametric은 항상 계산, Monte Carlo 타임아웃은 해당 방법만 unavailable
func (e *Engine) Compute(ctx context.Context, snap *contracts.Snapshot, model *correlation.Model) (*contracts.VaRMetrics, contracts.Status, error) {
	status := contracts.OK()

	exposures := snap.MarketValues()
	if len(exposures) != model.Size() {
		err := fmt.Errorf("%w: %d exposures for %d-instrument model", contracts.ErrInvalidInput, len(exposures), model.Size())
		return nil, contracts.Unavailable(err), err
	}

	metrics := &contracts.VaRMetrics{
		PortfolioValue: snap.GrossValue(),
		NetValue:       snap.NetValue(),
		ComponentVaR:   make(map[string]float64, len(exposures)),
	}

	// === Historical ===
	pnl := PnLSeries(exposures, snap.Returns)
	h95 := CalculateVaR(pnl, Confidence95)
	h99 := CalculateVaR(pnl, Confidence99)
	metrics.Historical = estimate(h95, h99)
	metrics.ExpectedShortfall = h95.CVaR

	// === Parametric ===
	covW := model.CovTimes(exposures)
	sigma := math.Sqrt(model.PortfolioVariance(exposures))
	metrics.DailyVolatility = sigma
	p95 := CalculateParametricVaR(sigma, Confidence95, 1)
	p99 := CalculateParametricVaR(sigma, Confidence99, 1)
	metrics.Parametric = estimate(p95, p99)
	if sigma == 0 {
		status.Warn("%v: portfolio volatility is zero, parametric VaR is 0", contracts.ErrNumericalDegeneracy)
	}

	// === Component VaR (parametric, 1-day 95%) ===
	components := ComponentVaR(exposures, covW, p95.VaR)
	for i, symbol := range snap.Symbols() {
		metrics.ComponentVaR[symbol] = components[i]
	}

	// === Monte Carlo ===
	mc, err := e.monteCarlo(ctx, model, exposures, snap.Returns)
	switch {
	case err == nil:
		metrics.MonteCarlo = estimate(mc.VaR95, mc.VaR99)
		metrics.MonteCarlo.Simulations = mc.Simulations
		metrics.MonteCarlo.Seed = mc.Seed
		if mc.Degraded {
			status.Warn("%v: covariance not positive definite, eigen square root used", contracts.ErrNumericalDegeneracy)
		}
		if mc.Truncated {
			status.Note("monte carlo capped at %d simulations", mc.Simulations)
		}
	case errors.Is(err, contracts.ErrSimulationTimeout):
		metrics.MonteCarlo = contracts.VaREstimate{Available: false}
		status.Warn("monte carlo unavailable: %v", err)
	case errors.Is(err, context.DeadlineExceeded):
		// 실행 타임아웃: 완료된 historical/parametric은 유지
		metrics.MonteCarlo = contracts.VaREstimate{Available: false}
		status.Warn("monte carlo unavailable: %v: run deadline reached", contracts.ErrSimulationTimeout)
	default:
		// 상위 취소 (superseded / 호출자 취소)
		return nil, contracts.Unavailable(err), err
	}

	// === Limits ===
	check := e.CheckLimits(metrics)
	if !check.Passed {
		metrics.LimitBreaches = check.Violations
		for _, v := range check.Violations {
			status.Note("limit breach: %s", v)
		}
	}

	return metrics, status, nil
}

func (e *Engine) monteCarlo(ctx context.Context, model *correlation.Model, exposures []float64, returns [][]float64) (*MonteCarloResult, error) {
	simulator := NewMonteCarloSimulator(e.config.MonteCarlo)
	return simulator.Simulate(ctx, model.Covariance, exposures, returns)
}

// estimate 1-day 결과에서 10-day (√10) 포함 VaREstimate 구성
func estimate(v95, v99 VaRResult) contracts.VaREstimate {
	return contracts.VaREstimate{
		Available: true,
		VaR95_1d:  v95.VaR,
		VaR99_1d:  v99.VaR,
		VaR95_10d: ScaleHorizon(v95.VaR, TenDayHorizon),
		VaR99_10d: ScaleHorizon(v99.VaR, TenDayHorizon),
		CVaR95_1d: v95.CVaR,
		CVaR99_1d: v99.CVaR,
	}
}

// =============================================================================
// Risk Check (순수 계산)
// =============================================================================

// CheckLimits 리스크 한도 체크 (Historical 1-day 95%, 포트폴리오 가치 대비)
func (e *Engine) CheckLimits(metrics *contracts.VaRMetrics) *RiskCheckResult {
	limits := e.config.Limits
	result := &RiskCheckResult{
		Passed:       true,
		MaxVaRLimit:  limits.MaxVaR95,
		MaxCVaRLimit: limits.MaxCVaR95,
		Violations:   make([]string, 0),
		CheckedAt:    time.Now(),
	}

	if metrics.PortfolioValue <= 0 {
		return result
	}

	result.VaR95 = metrics.Historical.VaR95_1d / metrics.PortfolioValue
	result.CVaR95 = metrics.Historical.CVaR95_1d / metrics.PortfolioValue

	// VaR 한도 체크
	if limits.MaxVaR95 > 0 && result.VaR95 > limits.MaxVaR95 {
		result.Passed = false
		result.Violations = append(result.Violations,
			fmt.Sprintf("VaR95 %.4f exceeds limit %.4f", result.VaR95, limits.MaxVaR95))
	}

	// CVaR 한도 체크
	if limits.MaxCVaR95 > 0 && result.CVaR95 > limits.MaxCVaR95 {
		result.Passed = false
		result.Violations = append(result.Violations,
			fmt.Sprintf("CVaR95 %.4f exceeds limit %.4f", result.CVaR95, limits.MaxCVaR95))
	}

	return result
}

// ValidateConfig 설정 유효성 검사
func ValidateConfig(config Config) error {
	mc := config.MonteCarlo
	if mc.NumSimulations <= 0 {
		return fmt.Errorf("%w: num_simulations must be > 0", contracts.ErrInvalidInput)
	}
	if mc.MaxSimulations < 0 {
		return fmt.Errorf("%w: max_simulations must be >= 0", contracts.ErrInvalidInput)
	}
	if mc.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be > 0", contracts.ErrInvalidInput)
	}
	if mc.Budget < 0 {
		return fmt.Errorf("%w: budget must be >= 0", contracts.ErrInvalidInput)
	}
	switch mc.Method {
	case MethodParametricNormal, MethodHistoricalBootstrap:
	default:
		return fmt.Errorf("%w: unknown monte carlo method %q", contracts.ErrInvalidInput, mc.Method)
	}
	if config.Limits.MaxVaR95 < 0 || config.Limits.MaxCVaR95 < 0 {
		return fmt.Errorf("%w: limits must be >= 0", contracts.ErrInvalidInput)
	}
	return nil
}
