package stress

import (
	"math"

	"github.com/wonny/aegis-risk/internal/contracts"
)

// Config 스트레스 엔진 설정
type Config struct {
	// DefaultDuration 듀레이션 미기재 채권/크레딧 포지션에 적용 (years)
	DefaultDuration float64 `json:"default_duration" yaml:"default_duration"`
}

// DefaultConfig returns the default stress configuration
func DefaultConfig() Config {
	return Config{DefaultDuration: 5.0}
}

// Engine 스트레스 테스트 엔진 (순수 계산기)
// ⭐ SSOT: 사전정의/커스텀 시나리오를 동일 경로로 처리 (special-casing 없음)
type Engine struct {
	config Config
}

// NewEngine 새 스트레스 엔진 생성
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// Run applies every scenario to the snapshot positions
// predefined 뒤에 snapshot의 customScenarios를 이어서 처리
func (e *Engine) Run(snap *contracts.Snapshot, predefined []contracts.ScenarioDefinition) ([]contracts.StressScenario, contracts.Status) {
	status := contracts.OK()

	gross := snap.GrossValue()
	if gross == 0 {
		status.Warn("%v: gross portfolio value is zero, percentage impact reported as 0", contracts.ErrNumericalDegeneracy)
	}

	defaulted := 0
	for _, p := range snap.Positions {
		if usesDuration(p.Class()) && p.Duration == 0 {
			defaulted++
		}
	}
	if defaulted > 0 {
		status.Note("%d rate-sensitive positions use default duration %.1fy", defaulted, e.config.DefaultDuration)
	}

	out := make([]contracts.StressScenario, 0, len(predefined)+len(snap.CustomScenarios))
	for _, def := range predefined {
		out = append(out, e.Apply(snap, def, gross, false))
	}
	for _, def := range snap.CustomScenarios {
		out = append(out, e.Apply(snap, def, gross, true))
	}

	return out, status
}

// Apply computes one scenario: impact_i = MV_i × sensitivity_i
func (e *Engine) Apply(snap *contracts.Snapshot, def contracts.ScenarioDefinition, gross float64, custom bool) contracts.StressScenario {
	result := contracts.StressScenario{
		ScenarioDefinition: def,
		Custom:             custom,
		Positions:          make([]contracts.PositionImpact, 0, len(snap.Positions)),
	}

	total := 0.0
	for _, p := range snap.Positions {
		sens := Sensitivity(p, def.Shocks, e.config.DefaultDuration)
		impact := p.MarketValue() * sens
		total += impact

		result.Positions = append(result.Positions, contracts.PositionImpact{
			Symbol:      p.Symbol,
			Sensitivity: sens,
			Impact:      impact,
		})
	}

	result.Impact.Absolute = total
	if gross > 0 {
		result.Impact.Percentage = total / gross * 100
	}
	return result
}

// Sensitivity 자산군별 시나리오 민감도 (MV 대비 변화율)
//   equity/commodity/crypto/other: β × equity%
//   fixed income: −D × Δy
//   credit:       −D × (Δy + Δs)
//   currency:     fx% (direct FX delta)
//   cash:         0
func Sensitivity(p contracts.Position, shocks contracts.Shocks, defaultDuration float64) float64 {
	duration := p.Duration
	if duration == 0 {
		duration = defaultDuration
	}

	switch p.Class() {
	case contracts.AssetFixedIncome:
		return -duration * shocks.BondYieldBps / 1e4
	case contracts.AssetCredit:
		return -duration * (shocks.BondYieldBps + shocks.CreditSpreadBps) / 1e4
	case contracts.AssetCurrency:
		return shocks.FXPct / 100
	case contracts.AssetCash:
		return 0
	default:
		return p.Beta * shocks.EquityPct / 100
	}
}

// WorstCase returns the scenario with the largest loss (nil if none)
func WorstCase(results []contracts.StressScenario) *contracts.StressScenario {
	var worst *contracts.StressScenario
	for i := range results {
		if worst == nil || results[i].Impact.Absolute < worst.Impact.Absolute {
			worst = &results[i]
		}
	}
	return worst
}

// ExpectedLoss 확률 가중 평균 손실 (probability 메타데이터 사용)
func ExpectedLoss(results []contracts.StressScenario) float64 {
	total := 0.0
	for _, r := range results {
		total += r.Probability * math.Min(0, r.Impact.Absolute)
	}
	return -total
}

func usesDuration(c contracts.AssetClass) bool {
	return c == contracts.AssetFixedIncome || c == contracts.AssetCredit
}
