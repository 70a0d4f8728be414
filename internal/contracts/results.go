package contracts

import "time"

// =============================================================================
// VaR
// =============================================================================

// VaREstimate holds one methodology's VaR/CVaR figures ($, loss as positive)
type VaREstimate struct {
	Available bool    `json:"available"`
	VaR95_1d  float64 `json:"var95_1d"`
	VaR99_1d  float64 `json:"var99_1d"`
	VaR95_10d float64 `json:"var95_10d"`
	VaR99_10d float64 `json:"var99_10d"`
	CVaR95_1d float64 `json:"cvar95_1d"`
	CVaR99_1d float64 `json:"cvar99_1d"`

	// Monte Carlo only
	Simulations int   `json:"simulations,omitempty"`
	Seed        int64 `json:"seed,omitempty"`
}

// VaRMetrics is the VaR section output
type VaRMetrics struct {
	PortfolioValue    float64            `json:"portfolioValue"`    // gross $
	NetValue          float64            `json:"netValue"`          // long − short $
	DailyVolatility   float64            `json:"dailyVolatility"`   // σ_p ($, 1-day)
	Historical        VaREstimate        `json:"historical"`
	Parametric        VaREstimate        `json:"parametric"`
	MonteCarlo        VaREstimate        `json:"monteCarlo"`
	ExpectedShortfall float64            `json:"expectedShortfall"` // historical 1-day 95% CVaR
	ComponentVaR      map[string]float64 `json:"componentVaR"`      // parametric 1-day 95%
	LimitBreaches     []string           `json:"limitBreaches,omitempty"`
}

// =============================================================================
// Correlation
// =============================================================================

// CorrelationMatrix is the correlation section output
type CorrelationMatrix struct {
	Symbols              []string    `json:"symbols"`
	Matrix               [][]float64 `json:"matrix"`
	Eigenvalues          []float64   `json:"eigenvalues"` // 내림차순, Σ == n
	ConcentrationRisk    float64     `json:"concentrationRisk"`    // λmax / trace
	HerfindahlIndex      float64     `json:"herfindahlIndex"`      // Σw²
	DiversificationRatio float64     `json:"diversificationRatio"` // mean off-diagonal |ρ|
	NearSingular         bool        `json:"nearSingular"`
	ZeroVolatility       []string    `json:"zeroVolatility,omitempty"`
}

// =============================================================================
// Stress
// =============================================================================

// PositionImpact is one position's $ impact under a scenario
type PositionImpact struct {
	Symbol      string  `json:"symbol"`
	Sensitivity float64 `json:"sensitivity"`
	Impact      float64 `json:"impact"`
}

// ScenarioImpact is the aggregate scenario impact
type ScenarioImpact struct {
	Absolute   float64 `json:"absolute"`   // $ (loss negative)
	Percentage float64 `json:"percentage"` // % of gross value
}

// StressScenario is one scenario result
type StressScenario struct {
	ScenarioDefinition
	Custom    bool             `json:"custom"`
	Impact    ScenarioImpact   `json:"impact"`
	Positions []PositionImpact `json:"positions"`
}

// =============================================================================
// Attribution
// =============================================================================

// Contribution is one bucket of an attribution breakdown
type Contribution struct {
	Contribution float64 `json:"contribution"` // $ VaR
	Percentage   float64 `json:"percentage"`   // Σ == 100
}

// RiskAttribution is the attribution section output
type RiskAttribution struct {
	Factor     map[string]Contribution `json:"factor"`
	Sector     map[string]Contribution `json:"sector"`
	AssetClass map[string]Contribution `json:"assetClass"`
}

// =============================================================================
// Liquidity
// =============================================================================

// PositionLiquidity 종목별 유동성 프로파일
type PositionLiquidity struct {
	Symbol            string  `json:"symbol"`
	BidAskSpread      float64 `json:"bidAskSpread"`
	DailyVolume       float64 `json:"dailyVolume"`
	VolumeToMarketCap float64 `json:"volumeToMarketCap"`
	TimeToLiquidate   int     `json:"timeToLiquidate"` // days
	LiquidityScore    float64 `json:"liquidityScore"`  // [0,1], 1 = most liquid
	LiquidationCost   float64 `json:"liquidationCost"` // half-spread × |MV|
}

// LiquidityAggregate 포트폴리오 유동성 집계
type LiquidityAggregate struct {
	AverageSpread            float64 `json:"averageSpread"`
	TimeToLiquidatePortfolio int     `json:"timeToLiquidatePortfolio"`
	LiquidityRiskScore       float64 `json:"liquidityRiskScore"`
	LiquidationCost          float64 `json:"liquidationCost"`
	LiquidationPolicy        string  `json:"liquidationPolicy"`
}

// LiquidityProfile is the liquidity section output
type LiquidityProfile struct {
	Positions []PositionLiquidity `json:"positions"`
	Aggregate LiquidityAggregate  `json:"aggregate"`
	Excluded  []string            `json:"excluded,omitempty"`
}

// =============================================================================
// Counterparty
// =============================================================================

// CounterpartyDetail 거래상대방별 EAD/EL
type CounterpartyDetail struct {
	Counterparty       string   `json:"counterparty"`
	Name               string   `json:"name,omitempty"`
	Symbols            []string `json:"symbols,omitempty"`
	ExposureAtDefault  float64  `json:"exposureAtDefault"`
	ProbabilityDefault float64  `json:"pd"`
	LossGivenDefault   float64  `json:"lgd"`
	ExpectedLoss       float64  `json:"expectedLoss"`
	ExposureShare      float64  `json:"exposureShare"` // EAD / total
}

// CounterpartyExposure is the counterparty section output
type CounterpartyExposure struct {
	TotalExposure         float64              `json:"totalExposure"`
	PortfolioExpectedLoss float64              `json:"portfolioExpectedLoss"`
	LargestExposureShare  float64              `json:"largestExposureShare"`
	Counterparties        []CounterpartyDetail `json:"counterparties"`
	Excluded              []string             `json:"excluded,omitempty"`
}

// =============================================================================
// Backtest
// =============================================================================

// BacktestResult is the backtest section output
type BacktestResult struct {
	Strategy         string    `json:"strategy"`
	Returns          []float64 `json:"returns"`
	CumulativeReturn []float64 `json:"cumulativeReturn"` // compounded path
	TotalReturn      float64   `json:"totalReturn"`
	AnnualReturn     float64   `json:"annualReturn"`
	Volatility       float64   `json:"volatility"` // annualized
	SharpeRatio      float64   `json:"sharpeRatio"`
	SortinoRatio     float64   `json:"sortinoRatio"`
	MaxDrawdown      float64   `json:"maxDrawdown"` // fraction, positive
	CalmarRatio      float64   `json:"calmarRatio"`
	WinRate          float64   `json:"winRate"`
	Periods          int       `json:"periods"`
}

// =============================================================================
// Aggregate
// =============================================================================

// AnalysisResult is the orchestrator output
// ⭐ SSOT: Orchestrator만 작성 (sole writer)
type AnalysisResult struct {
	RunID       string    `json:"runId"`
	PortfolioID string    `json:"portfolioId,omitempty"`
	State       RunState  `json:"state"`
	AsOf        time.Time `json:"asOf"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	DurationMs  int64     `json:"durationMs"`
	ModelHash   string    `json:"modelHash"`

	VaRMetrics        *VaRMetrics           `json:"varMetrics"`
	StressScenarios   []StressScenario      `json:"stressScenarios"`
	CorrelationMatrix *CorrelationMatrix    `json:"correlationMatrix"`
	RiskAttribution   *RiskAttribution      `json:"riskAttribution"`
	LiquidityRisk     *LiquidityProfile     `json:"liquidityRisk"`
	CounterpartyRisk  *CounterpartyExposure `json:"counterpartyRisk"`
	BacktestResult    *BacktestResult       `json:"backtestResult"`

	Sections map[Section]Status `json:"sections"`
	Error    string             `json:"error,omitempty"`
}

// Degraded reports whether any section is degraded or unavailable
func (r *AnalysisResult) Degraded() bool {
	for _, st := range r.Sections {
		if st.Degraded || !st.Available {
			return true
		}
	}
	return false
}

// AvailableCount returns how many sections produced a result
func (r *AnalysisResult) AvailableCount() int {
	n := 0
	for _, st := range r.Sections {
		if st.Available {
			n++
		}
	}
	return n
}
