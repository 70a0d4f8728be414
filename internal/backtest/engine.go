package backtest

import (
	"fmt"
	"math"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/risk"
)

// zeroVolEpsilon 기간 수익률 표준편차가 이 값 미만이면 변동성 0
const zeroVolEpsilon = 1e-12

// DefaultStrategy 전략 수익률 미제공 시 현재 비중 그대로 보유한 것으로 간주
const DefaultStrategy = "buy_and_hold"

// Config holds backtest configuration
type Config struct {
	RiskFreeRate   float64 `json:"risk_free_rate" yaml:"risk_free_rate"`     // 연율 (0.04 = 4%)
	PeriodsPerYear int     `json:"periods_per_year" yaml:"periods_per_year"` // 일간 = 252
}

// DefaultConfig returns the default backtest configuration
func DefaultConfig() Config {
	return Config{
		RiskFreeRate:   0.04,
		PeriodsPerYear: 252,
	}
}

// Engine 성과 백테스트 엔진 (전략 무관, 수익률 시계열만 사용)
// ⭐ SSOT: 백테스팅 성과 지표 계산은 여기서만
type Engine struct {
	config Config
}

// NewEngine creates a new backtest engine
func NewEngine(config Config) *Engine {
	if config.PeriodsPerYear <= 0 {
		config.PeriodsPerYear = DefaultConfig().PeriodsPerYear
	}
	return &Engine{config: config}
}

// Run backtests the snapshot strategy
// strategyReturns 우선, 없으면 비중 가중 포트폴리오 수익률
func (e *Engine) Run(snap *contracts.Snapshot) (*contracts.BacktestResult, contracts.Status, error) {
	strategy := snap.Strategy
	returns := snap.StrategyReturns
	if len(returns) == 0 {
		returns = snap.PortfolioReturns()
		if strategy == "" {
			strategy = DefaultStrategy
		}
	}
	if strategy == "" {
		strategy = "custom"
	}
	return e.Evaluate(strategy, returns)
}

// Evaluate calculates performance metrics from a per-period return series
func (e *Engine) Evaluate(strategy string, returns []float64) (*contracts.BacktestResult, contracts.Status, error) {
	n := len(returns)
	if n < 2 {
		err := fmt.Errorf("%w: backtest needs at least 2 periods, got %d", contracts.ErrInvalidInput, n)
		return nil, contracts.Unavailable(err), err
	}

	status := contracts.OK()
	periods := float64(e.config.PeriodsPerYear)
	rfPeriod := e.config.RiskFreeRate / periods

	result := &contracts.BacktestResult{
		Strategy:         strategy,
		Returns:          append([]float64(nil), returns...),
		CumulativeReturn: make([]float64, n),
		Periods:          n,
	}

	// Wealth curve (compounded)
	wealth := 1.0
	wins := 0
	for i, r := range returns {
		wealth *= 1 + r
		result.CumulativeReturn[i] = wealth - 1
		if r > 0 {
			wins++
		}
	}
	result.TotalReturn = wealth - 1
	result.WinRate = float64(wins) / float64(n)

	// Annualized return
	if wealth > 0 {
		result.AnnualReturn = math.Pow(wealth, periods/float64(n)) - 1
	} else {
		result.AnnualReturn = -1
	}

	// Volatility (annualized)
	std := risk.StdDev(returns)
	if std < zeroVolEpsilon {
		std = 0
	}
	result.Volatility = std * math.Sqrt(periods)

	excess := make([]float64, n)
	for i, r := range returns {
		excess[i] = r - rfPeriod
	}
	meanExcess := risk.Mean(excess)

	// Sharpe Ratio
	if std > 0 {
		result.SharpeRatio = meanExcess / std * math.Sqrt(periods)
	} else {
		status.Warn("%v: return series has zero volatility, ratios reported as 0", contracts.ErrNumericalDegeneracy)
	}

	// Sortino Ratio (downside deviation)
	downside := downsideDeviation(excess)
	if downside > zeroVolEpsilon && std > 0 {
		result.SortinoRatio = meanExcess / downside * math.Sqrt(periods)
	} else if std > 0 {
		status.Note("no downside periods, sortino reported as 0")
	}

	// Maximum Drawdown
	result.MaxDrawdown = MaxDrawdown(result.CumulativeReturn)

	// Calmar Ratio
	if result.MaxDrawdown > 0 {
		result.CalmarRatio = result.AnnualReturn / result.MaxDrawdown
	}

	return result, status, nil
}

// downsideDeviation √(mean(min(0, r)²)) over all periods
func downsideDeviation(excess []float64) float64 {
	if len(excess) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range excess {
		if r < 0 {
			sum += r * r
		}
	}
	return math.Sqrt(sum / float64(len(excess)))
}

// MaxDrawdown calculates maximum drawdown from a cumulative return path
// 초기 자본 1.0을 고점 후보로 포함
func MaxDrawdown(cumulative []float64) float64 {
	maxDrawdown := 0.0
	peak := 1.0

	for _, c := range cumulative {
		equity := 1 + c
		if equity > peak {
			peak = equity
		}

		drawdown := (peak - equity) / peak
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	return maxDrawdown
}
