package contracts

// Analysis Section 정의 (SSOT)
// 모든 로그, 메트릭 라벨, 결과 JSON에서 이 상수를 사용해야 함
//
// 실행 흐름:
//   Validate → Freeze → Covariance → (7 sections, 병렬) → Join
//   VaR  Correlation  Stress  Attribution  Liquidity  Counterparty  Backtest

// Section represents one independent analysis of a run
type Section string

const (
	// SectionVaR Historical/Parametric/Monte Carlo VaR, CVaR, Component VaR
	// 위치: internal/risk/
	SectionVaR Section = "varMetrics"

	// SectionCorrelation 상관행렬, 고유값 스펙트럼, 분산 지표
	// 위치: internal/correlation/
	SectionCorrelation Section = "correlationMatrix"

	// SectionStress 시나리오 스트레스 테스트
	// 위치: internal/stress/
	SectionStress Section = "stressScenarios"

	// SectionAttribution 팩터/섹터/자산군 리스크 귀인
	// 위치: internal/attribution/
	SectionAttribution Section = "riskAttribution"

	// SectionLiquidity 청산 기간, 스프레드 비용
	// 위치: internal/liquidity/
	SectionLiquidity Section = "liquidityRisk"

	// SectionCounterparty 거래상대방 EAD/EL
	// 위치: internal/counterparty/
	SectionCounterparty Section = "counterpartyRisk"

	// SectionBacktest 전략 성과 (Sharpe/Sortino/MDD)
	// 위치: internal/backtest/
	SectionBacktest Section = "backtestResult"
)

// String returns the section name
func (s Section) String() string {
	return string(s)
}

// ShortName returns abbreviated section name used in CLI reports and metric labels
func (s Section) ShortName() string {
	switch s {
	case SectionVaR:
		return "var"
	case SectionCorrelation:
		return "correlation"
	case SectionStress:
		return "stress"
	case SectionAttribution:
		return "attribution"
	case SectionLiquidity:
		return "liquidity"
	case SectionCounterparty:
		return "counterparty"
	case SectionBacktest:
		return "backtest"
	default:
		return "unknown"
	}
}

// Description returns Korean description of the section
func (s Section) Description() string {
	switch s {
	case SectionVaR:
		return "VaR/기대손실"
	case SectionCorrelation:
		return "상관관계/분산"
	case SectionStress:
		return "스트레스 테스트"
	case SectionAttribution:
		return "리스크 귀인"
	case SectionLiquidity:
		return "유동성 리스크"
	case SectionCounterparty:
		return "거래상대방 리스크"
	case SectionBacktest:
		return "백테스트"
	default:
		return "알 수 없음"
	}
}

// AllSections returns all sections in report order
func AllSections() []Section {
	return []Section{
		SectionVaR,
		SectionCorrelation,
		SectionStress,
		SectionAttribution,
		SectionLiquidity,
		SectionCounterparty,
		SectionBacktest,
	}
}

// IsValidSection checks if a section string is valid
func IsValidSection(s string) bool {
	for _, section := range AllSections() {
		if string(section) == s {
			return true
		}
	}
	return false
}

// RunState is the orchestrator lifecycle state
type RunState string

const (
	StateIdle      RunState = "IDLE"
	StateRunning   RunState = "RUNNING"
	StateCompleted RunState = "COMPLETED"
	StateFailed    RunState = "FAILED"
)

// IsTerminal reports whether no further transition happens for this run
func (s RunState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}
