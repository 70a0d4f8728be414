package contracts

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// AssetClass drives stress sensitivities and factor loadings
type AssetClass string

const (
	AssetEquity      AssetClass = "equity"
	AssetFixedIncome AssetClass = "fixed_income"
	AssetCredit      AssetClass = "credit"
	AssetCurrency    AssetClass = "currency"
	AssetCommodity   AssetClass = "commodity"
	AssetCrypto      AssetClass = "crypto"
	AssetCash        AssetClass = "cash"
	AssetOther       AssetClass = "other"
)

// ParseAssetClass maps free-form collaborator labels onto the known classes
// 알 수 없는 라벨은 AssetOther (equity-like 민감도)
func ParseAssetClass(s string) AssetClass {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)

	switch key {
	case "equity", "equities", "stock", "stocks", "etf":
		return AssetEquity
	case "fixedincome", "bond", "bonds", "govt", "government", "treasury", "rates":
		return AssetFixedIncome
	case "credit", "corporatebond", "corporate", "highyield", "ig", "hy":
		return AssetCredit
	case "currency", "fx", "forex":
		return AssetCurrency
	case "commodity", "commodities":
		return AssetCommodity
	case "crypto", "cryptocurrency", "digitalasset":
		return AssetCrypto
	case "cash", "moneymarket":
		return AssetCash
	default:
		return AssetOther
	}
}

// Position 포트폴리오 보유 종목 (실행 중 불변)
type Position struct {
	Symbol     string     `json:"symbol" yaml:"symbol"`
	Quantity   float64    `json:"quantity" yaml:"quantity"`
	Price      float64    `json:"price" yaml:"price"`
	Weight     float64    `json:"weight" yaml:"weight"` // 시가 비중 (Σ ≈ 1)
	Sector     string     `json:"sector" yaml:"sector"`
	AssetClass AssetClass `json:"assetClass" yaml:"assetClass"`
	Beta       float64    `json:"beta" yaml:"beta"`
	Volatility float64    `json:"volatility" yaml:"volatility"` // 연율화

	Duration     float64 `json:"duration,omitempty" yaml:"duration,omitempty"`         // years, 0 = model default
	Counterparty string  `json:"counterparty,omitempty" yaml:"counterparty,omitempty"` // counterpartyRef key
}

// MarketValue returns quantity × price (shorts are negative)
func (p Position) MarketValue() float64 {
	return p.Quantity * p.Price
}

// Class returns the normalized asset class
func (p Position) Class() AssetClass {
	return ParseAssetClass(string(p.AssetClass))
}

// CounterpartyRef 거래상대방 정적 레퍼런스 (PD/LGD)
type CounterpartyRef struct {
	Name               string  `json:"name,omitempty" yaml:"name,omitempty"`
	ProbabilityDefault float64 `json:"pd" yaml:"pd"`
	LossGivenDefault   float64 `json:"lgd" yaml:"lgd"`
	AdditionalExposure float64 `json:"additionalExposure,omitempty" yaml:"additionalExposure,omitempty"` // derivative MTM / notional
}

// MarketDepth 종목별 호가/거래량 레퍼런스
type MarketDepth struct {
	DailyVolume  float64 `json:"dailyVolume" yaml:"dailyVolume"`   // shares
	MarketCap    float64 `json:"marketCap" yaml:"marketCap"`       // $
	BidAskSpread float64 `json:"bidAskSpread" yaml:"bidAskSpread"` // fraction of mid (0.001 = 10bp)
}

// Shocks is the macro shock vector of a scenario
type Shocks struct {
	EquityPct       float64 `json:"equityPct" yaml:"equity_pct"`        // -35 = -35%
	BondYieldBps    float64 `json:"bondYieldBps" yaml:"bond_yield_bps"` // +100 = +1%p
	CreditSpreadBps float64 `json:"creditSpreadBps" yaml:"credit_spread_bps"`
	FXPct           float64 `json:"fxPct" yaml:"fx_pct"`
}

// ScenarioDefinition is a named shock set (predefined or caller supplied)
type ScenarioDefinition struct {
	Name             string  `json:"name" yaml:"name"`
	Description      string  `json:"description" yaml:"description"`
	Shocks           Shocks  `json:"shocks" yaml:"shocks"`
	Probability      float64 `json:"probability" yaml:"probability"`
	HistoricalAnalog string  `json:"historicalAnalog,omitempty" yaml:"historical_analog"`
}

// Snapshot is the immutable input of one analysis run
// ⭐ SSOT: 모든 엔진은 Snapshot(동결 복사본)만 읽음
type Snapshot struct {
	PortfolioID string    `json:"portfolioId,omitempty" yaml:"portfolioId,omitempty"`
	AsOf        time.Time `json:"asOf" yaml:"asOf"`

	Positions []Position  `json:"positions" yaml:"positions"`
	Returns   [][]float64 `json:"returns" yaml:"returns"` // row per position, same order

	CounterpartyRef map[string]CounterpartyRef `json:"counterpartyRef,omitempty" yaml:"counterpartyRef,omitempty"`
	MarketDepthRef  map[string]MarketDepth     `json:"marketDepthRef,omitempty" yaml:"marketDepthRef,omitempty"`

	Strategy        string               `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	StrategyReturns []float64            `json:"strategyReturns,omitempty" yaml:"strategyReturns,omitempty"`
	CustomScenarios []ScenarioDefinition `json:"customScenarios,omitempty" yaml:"customScenarios,omitempty"`
}

// Clone returns a deep copy (single-writer-then-freeze)
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	c := *s
	c.Positions = append([]Position(nil), s.Positions...)

	if s.Returns != nil {
		c.Returns = make([][]float64, len(s.Returns))
		for i, row := range s.Returns {
			c.Returns[i] = append([]float64(nil), row...)
		}
	}

	if s.CounterpartyRef != nil {
		c.CounterpartyRef = make(map[string]CounterpartyRef, len(s.CounterpartyRef))
		for k, v := range s.CounterpartyRef {
			c.CounterpartyRef[k] = v
		}
	}
	if s.MarketDepthRef != nil {
		c.MarketDepthRef = make(map[string]MarketDepth, len(s.MarketDepthRef))
		for k, v := range s.MarketDepthRef {
			c.MarketDepthRef[k] = v
		}
	}

	c.StrategyReturns = append([]float64(nil), s.StrategyReturns...)
	c.CustomScenarios = append([]ScenarioDefinition(nil), s.CustomScenarios...)
	return &c
}

// Symbols returns position symbols in input order
func (s *Snapshot) Symbols() []string {
	out := make([]string, len(s.Positions))
	for i, p := range s.Positions {
		out[i] = p.Symbol
	}
	return out
}

// MarketValues returns signed $ exposures in input order
func (s *Snapshot) MarketValues() []float64 {
	out := make([]float64, len(s.Positions))
	for i, p := range s.Positions {
		out[i] = p.MarketValue()
	}
	return out
}

// Weights returns position weights in input order
func (s *Snapshot) Weights() []float64 {
	out := make([]float64, len(s.Positions))
	for i, p := range s.Positions {
		out[i] = p.Weight
	}
	return out
}

// GrossValue returns Σ|MV|
func (s *Snapshot) GrossValue() float64 {
	total := 0.0
	for _, p := range s.Positions {
		total += math.Abs(p.MarketValue())
	}
	return total
}

// NetValue returns Σ MV
func (s *Snapshot) NetValue() float64 {
	total := 0.0
	for _, p := range s.Positions {
		total += p.MarketValue()
	}
	return total
}

// Observations returns the lookback length (0 if no returns)
func (s *Snapshot) Observations() int {
	if len(s.Returns) == 0 {
		return 0
	}
	return len(s.Returns[0])
}

// PortfolioReturns returns the weight-weighted daily return series
func (s *Snapshot) PortfolioReturns() []float64 {
	n := s.Observations()
	out := make([]float64, n)
	for i, p := range s.Positions {
		if i >= len(s.Returns) {
			break
		}
		for t := 0; t < n && t < len(s.Returns[i]); t++ {
			out[t] += p.Weight * s.Returns[i][t]
		}
	}
	return out
}

// ValidateOptions controls input validation thresholds
type ValidateOptions struct {
	WeightTolerance float64 // |Σw − 1| 허용치
	MinObservations int     // 최소 lookback 길이
}

// DefaultValidateOptions returns the default thresholds
func DefaultValidateOptions() ValidateOptions {
	return ValidateOptions{
		WeightTolerance: 0.01,
		MinObservations: 30,
	}
}

// Validate checks the input contract
// 실패 시 ValidationError (errors.Is(err, ErrInvalidInput) == true)
func (s *Snapshot) Validate(opts ValidateOptions) error {
	if s == nil || len(s.Positions) == 0 {
		return ValidationError{"positions", "at least one position is required"}
	}

	// === Positions ===
	seen := make(map[string]struct{}, len(s.Positions))
	weightSum := 0.0
	for i, p := range s.Positions {
		field := fmt.Sprintf("positions[%d]", i)
		if strings.TrimSpace(p.Symbol) == "" {
			return ValidationError{field + ".symbol", "required"}
		}
		if _, dup := seen[p.Symbol]; dup {
			return ValidationError{field + ".symbol", fmt.Sprintf("duplicate symbol %q", p.Symbol)}
		}
		seen[p.Symbol] = struct{}{}

		numeric := []struct {
			name  string
			value float64
		}{
			{"quantity", p.Quantity}, {"price", p.Price}, {"weight", p.Weight},
			{"beta", p.Beta}, {"volatility", p.Volatility}, {"duration", p.Duration},
		}
		for _, n := range numeric {
			if !isFinite(n.value) {
				return ValidationError{field + "." + n.name, "must be finite"}
			}
		}
		if p.Price <= 0 {
			return ValidationError{field + ".price", "must be > 0"}
		}
		if p.Volatility < 0 {
			return ValidationError{field + ".volatility", "must be >= 0"}
		}
		if p.Duration < 0 {
			return ValidationError{field + ".duration", "must be >= 0"}
		}
		weightSum += p.Weight
	}

	if math.Abs(weightSum-1) > opts.WeightTolerance {
		return ValidationError{"positions.weight", fmt.Sprintf("weights sum to %.6f, want 1 ± %.4f", weightSum, opts.WeightTolerance)}
	}

	// === Returns ===
	if len(s.Returns) != len(s.Positions) {
		return ValidationError{"returns", fmt.Sprintf("row count %d != position count %d", len(s.Returns), len(s.Positions))}
	}
	window := len(s.Returns[0])
	if window < opts.MinObservations {
		return ValidationError{"returns", fmt.Sprintf("lookback %d < minimum %d", window, opts.MinObservations)}
	}
	for i, row := range s.Returns {
		if len(row) != window {
			return ValidationError{fmt.Sprintf("returns[%d]", i), fmt.Sprintf("length %d != %d", len(row), window)}
		}
		for t, r := range row {
			if !isFinite(r) {
				return ValidationError{fmt.Sprintf("returns[%d][%d]", i, t), "must be finite"}
			}
		}
	}

	// === References ===
	for id, ref := range s.CounterpartyRef {
		field := fmt.Sprintf("counterpartyRef[%s]", id)
		if !isFinite(ref.ProbabilityDefault) || ref.ProbabilityDefault < 0 || ref.ProbabilityDefault > 1 {
			return ValidationError{field + ".pd", "must be in [0, 1]"}
		}
		if !isFinite(ref.LossGivenDefault) || ref.LossGivenDefault < 0 || ref.LossGivenDefault > 1 {
			return ValidationError{field + ".lgd", "must be in [0, 1]"}
		}
		if !isFinite(ref.AdditionalExposure) || ref.AdditionalExposure < 0 {
			return ValidationError{field + ".additionalExposure", "must be >= 0"}
		}
	}
	for symbol, depth := range s.MarketDepthRef {
		field := fmt.Sprintf("marketDepthRef[%s]", symbol)
		if !isFinite(depth.DailyVolume) || !isFinite(depth.MarketCap) || !isFinite(depth.BidAskSpread) {
			return ValidationError{field, "must be finite"}
		}
		if depth.BidAskSpread < 0 {
			return ValidationError{field + ".bidAskSpread", "must be >= 0"}
		}
	}

	// === Strategy / scenarios ===
	for t, r := range s.StrategyReturns {
		if !isFinite(r) {
			return ValidationError{fmt.Sprintf("strategyReturns[%d]", t), "must be finite"}
		}
	}
	for i, sc := range s.CustomScenarios {
		if strings.TrimSpace(sc.Name) == "" {
			return ValidationError{fmt.Sprintf("customScenarios[%d].name", i), "required"}
		}
		sh := sc.Shocks
		if !isFinite(sh.EquityPct) || !isFinite(sh.BondYieldBps) || !isFinite(sh.CreditSpreadBps) || !isFinite(sh.FXPct) {
			return ValidationError{fmt.Sprintf("customScenarios[%d].shocks", i), "must be finite"}
		}
	}

	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
