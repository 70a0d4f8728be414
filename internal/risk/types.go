package risk

import "time"

// =============================================================================
// Convention
// =============================================================================

// VaRConvention VaR 부호 규약
// ⭐ SSOT: Loss를 양수로 표현 ($ 기준, VaR=1000 → 1,000달러 손실 가능)
// 전체 시스템에서 이 규약을 일관되게 사용
const VaRConvention = "loss_positive"

const (
	Confidence95 = 0.95
	Confidence99 = 0.99

	// TenDayHorizon square-root-of-time 스케일링 기간
	TenDayHorizon = 10
)

// =============================================================================
// VaR/CVaR Types
// =============================================================================

// VaRResult VaR 계산 결과
// ⭐ SSOT: VaR/CVaR는 손실을 양수로 표현
type VaRResult struct {
	Confidence float64 `json:"confidence"` // 신뢰수준 (예: 0.95, 0.99)
	VaR        float64 `json:"var"`        // Value at Risk (손실, 양수)
	CVaR       float64 `json:"cvar"`       // Conditional VaR (Expected Shortfall, 양수)
}

// =============================================================================
// Monte Carlo Types
// =============================================================================

// MonteCarloMethod 시뮬레이션 방법
type MonteCarloMethod string

const (
	MethodParametricNormal    MonteCarloMethod = "parametric_normal"    // Cholesky 상관 정규분포
	MethodHistoricalBootstrap MonteCarloMethod = "historical_bootstrap" // 과거 일자 재표본 (교차상관 보존)
)

// MonteCarloConfig Monte Carlo 시뮬레이션 설정
// ⭐ SSOT: 재현성을 위해 모든 설정을 명시적으로 기록
type MonteCarloConfig struct {
	Method         MonteCarloMethod `json:"method" yaml:"method"`
	NumSimulations int              `json:"num_simulations" yaml:"num_simulations"` // 요청 횟수 (기본: 10000)
	MaxSimulations int              `json:"max_simulations" yaml:"max_simulations"` // 상한 (초과 요청은 잘림)
	BatchSize      int              `json:"batch_size" yaml:"batch_size"`           // 배치마다 ctx.Done() 확인
	Budget         time.Duration    `json:"budget" yaml:"budget"`                   // wall-clock 예산
	Seed           int64            `json:"seed" yaml:"seed"`                       // 재현성용 시드 (0=entropy)
}

// DefaultMonteCarloConfig 기본 Monte Carlo 설정
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{
		Method:         MethodParametricNormal,
		NumSimulations: 10000,
		MaxSimulations: 200000,
		BatchSize:      1000,
		Budget:         5 * time.Second,
		Seed:           0, // 랜덤
	}
}

// MonteCarloResult Monte Carlo 시뮬레이션 결과
// ⭐ SSOT: 재현성을 위해 Seed/Simulations 기록
type MonteCarloResult struct {
	RunID       string           `json:"run_id"`
	Method      MonteCarloMethod `json:"method"`
	Simulations int              `json:"simulations"` // 실제 수행 횟수
	Seed        int64            `json:"seed"`
	VaR95       VaRResult        `json:"var_95"`
	VaR99       VaRResult        `json:"var_99"`
	Degraded    bool             `json:"degraded"` // Cholesky 실패 → eigen 제곱근 사용
	Truncated   bool             `json:"truncated"`
	Elapsed     time.Duration    `json:"elapsed"`
}

// =============================================================================
// Risk Check Types
// =============================================================================

// RiskCheckResult 리스크 체크 결과
type RiskCheckResult struct {
	Passed       bool      `json:"passed"`         // 통과 여부
	VaR95        float64   `json:"var_95"`         // 95% VaR / 포트폴리오 가치
	CVaR95       float64   `json:"cvar_95"`        // 95% CVaR / 포트폴리오 가치
	MaxVaRLimit  float64   `json:"max_var_limit"`  // VaR 한도
	MaxCVaRLimit float64   `json:"max_cvar_limit"` // CVaR 한도
	Violations   []string  `json:"violations"`     // 위반 항목
	CheckedAt    time.Time `json:"checked_at"`
}

// RiskLimits 리스크 한도 설정 (포트폴리오 가치 대비 비율)
type RiskLimits struct {
	MaxVaR95  float64 `json:"max_var_95" yaml:"max_var_95"`   // 최대 1일 95% VaR (예: 0.05 = 5%)
	MaxCVaR95 float64 `json:"max_cvar_95" yaml:"max_cvar_95"` // 최대 1일 95% CVaR
}

// DefaultRiskLimits 기본 리스크 한도
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxVaR95:  0.05, // 5% VaR
		MaxCVaR95: 0.07, // 7% CVaR
	}
}

// Config VaR 엔진 설정
type Config struct {
	MonteCarlo MonteCarloConfig
	Limits     RiskLimits
}

// DefaultConfig returns the default VaR engine configuration
func DefaultConfig() Config {
	return Config{
		MonteCarlo: DefaultMonteCarloConfig(),
		Limits:     DefaultRiskLimits(),
	}
}
