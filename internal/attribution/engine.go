package attribution

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/correlation"
	"github.com/wonny/aegis-risk/internal/risk"
)

// Factor names
const (
	FactorMarket   = "market"
	FactorRates    = "rates"
	FactorCredit   = "credit"
	FactorFX       = "fx"
	FactorSpecific = "specific"

	// UnclassifiedSector 섹터 미기재 포지션 버킷
	UnclassifiedSector = "unclassified"

	tradingDays = 252
)

// Factors 시스템 팩터 순서 (B 행렬 열 순서)
var Factors = []string{FactorMarket, FactorRates, FactorCredit, FactorFX}

// FactorVols 팩터별 연율화 변동성
// rates/credit은 수익률(yield) 변화 단위 (0.01 = 100bp/년)
type FactorVols struct {
	Market float64 `json:"market" yaml:"market"`
	Rates  float64 `json:"rates" yaml:"rates"`
	Credit float64 `json:"credit" yaml:"credit"`
	FX     float64 `json:"fx" yaml:"fx"`
}

// Config 리스크 기여도 분석 설정
type Config struct {
	FactorVols      FactorVols `json:"factor_vols" yaml:"factor_vols"`
	Confidence      float64    `json:"confidence" yaml:"confidence"`
	DefaultDuration float64    `json:"default_duration" yaml:"default_duration"`
}

// DefaultConfig returns the default attribution configuration
func DefaultConfig() Config {
	return Config{
		FactorVols: FactorVols{
			Market: 0.16,
			Rates:  0.01,
			Credit: 0.008,
			FX:     0.10,
		},
		Confidence:      risk.Confidence95,
		DefaultDuration: 5.0,
	}
}

// Engine 리스크 기여도 분석 엔진 (순수 계산기)
type Engine struct {
	config Config
}

// NewEngine 새 기여도 엔진 생성
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// Compute 팩터/섹터/자산군별 VaR 기여도
// 섹터/자산군은 parametric component VaR 재집계, 팩터는 BFBᵀ+D 분해
func (e *Engine) Compute(snap *contracts.Snapshot, model *correlation.Model) (*contracts.RiskAttribution, contracts.Status, error) {
	status := contracts.OK()

	exposures := snap.MarketValues()
	if len(exposures) != model.Size() {
		err := fmt.Errorf("%w: %d positions for %d-instrument model", contracts.ErrInvalidInput, len(exposures), model.Size())
		return nil, contracts.Unavailable(err), err
	}

	components := e.componentVaR(exposures, model)

	bySector := make(map[string]float64)
	byClass := make(map[string]float64)
	for i, p := range snap.Positions {
		sector := p.Sector
		if sector == "" {
			sector = UnclassifiedSector
		}
		bySector[sector] += components[i]
		byClass[string(p.Class())] += components[i]
	}

	factor, err := e.factorContributions(snap, model, exposures)
	if err != nil {
		return nil, contracts.Unavailable(err), err
	}

	result := &contracts.RiskAttribution{
		Factor:     normalize(factor, &status, "factor"),
		Sector:     normalize(bySector, &status, "sector"),
		AssetClass: normalize(byClass, &status, "asset class"),
	}

	return result, status, nil
}

// componentVaR Euler component VaR at the configured confidence (1-day)
func (e *Engine) componentVaR(exposures []float64, model *correlation.Model) []float64 {
	sigma := math.Sqrt(model.PortfolioVariance(exposures))
	total := risk.CalculateParametricVaR(sigma, e.config.Confidence, 1).VaR
	return risk.ComponentVaR(exposures, model.CovTimes(exposures), total)
}

// =============================================================================
// Factor model
// =============================================================================

// Loadings returns the n×k factor loading matrix B
//   market: β (rate/fx/cash 제외)
//   rates:  −D (채권, 크레딧)
//   credit: −D (크레딧)
//   fx:     1 (통화)
func (e *Engine) Loadings(positions []contracts.Position) *mat.Dense {
	b := mat.NewDense(len(positions), len(Factors), nil)
	for i, p := range positions {
		duration := p.Duration
		if duration == 0 {
			duration = e.config.DefaultDuration
		}

		switch p.Class() {
		case contracts.AssetFixedIncome:
			b.Set(i, 1, -duration)
		case contracts.AssetCredit:
			b.Set(i, 0, p.Beta)
			b.Set(i, 1, -duration)
			b.Set(i, 2, -duration)
		case contracts.AssetCurrency:
			b.Set(i, 3, 1)
		case contracts.AssetCash:
		default:
			b.Set(i, 0, p.Beta)
		}
	}
	return b
}

// factorVariances 일간 팩터 분산 (F 대각)
func (e *Engine) factorVariances() []float64 {
	v := e.config.FactorVols
	out := []float64{v.Market, v.Rates, v.Credit, v.FX}
	for i := range out {
		out[i] = out[i] * out[i] / tradingDays
	}
	return out
}

// factorContributions $ VaR per factor + specific (Σ == model VaR)
func (e *Engine) factorContributions(snap *contracts.Snapshot, model *correlation.Model, exposures []float64) (map[string]float64, error) {
	n := len(exposures)
	b := e.Loadings(snap.Positions)
	f := e.factorVariances()

	// 종목별 체계적 분산 (BFBᵀ)_ii
	systematic := make([]float64, n)
	for i := 0; i < n; i++ {
		s := 0.0
		for k, fk := range f {
			s += b.At(i, k) * b.At(i, k) * fk
		}
		systematic[i] = s
	}

	// D_ii = max(0, σ_i² − (BFBᵀ)_ii)
	specific := 0.0
	for i, p := range snap.Positions {
		sigma := p.Volatility / math.Sqrt(tradingDays)
		if sigma == 0 {
			sigma = model.Vols[i]
		}
		d := math.Max(0, sigma*sigma-systematic[i])
		specific += exposures[i] * exposures[i] * d
	}

	// portfolio factor exposure Bᵀw
	var bw mat.VecDense
	bw.MulVec(b.T(), mat.NewVecDense(n, append([]float64(nil), exposures...)))

	variances := make(map[string]float64, len(Factors)+1)
	total := specific
	for k, name := range Factors {
		v := bw.AtVec(k) * bw.AtVec(k) * f[k]
		variances[name] = v
		total += v
	}
	variances[FactorSpecific] = specific

	if math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("%w: factor model variance is not finite", contracts.ErrNumericalDegeneracy)
	}

	out := make(map[string]float64, len(variances))
	if total <= 0 {
		for name := range variances {
			out[name] = 0
		}
		return out, nil
	}

	modelVaR := risk.CalculateParametricVaR(math.Sqrt(total), e.config.Confidence, 1).VaR
	for name, v := range variances {
		out[name] = v / total * modelVaR
	}
	return out, nil
}

// minNetShare 순합계가 총 기여도(Σ|c|)의 이 비율 미만이면 degraded
const minNetShare = 0.05

// normalize converts $ contributions into Contribution buckets whose percentages sum to 100
// 합계 0 → 퍼센트 0, degraded
func normalize(buckets map[string]float64, status *contracts.Status, label string) map[string]contracts.Contribution {
	total, gross := 0.0, 0.0
	for _, v := range buckets {
		total += v
		gross += math.Abs(v)
	}

	out := make(map[string]contracts.Contribution, len(buckets))
	if math.Abs(total) < 1e-12 {
		status.Warn("%v: %s attribution total is zero", contracts.ErrNumericalDegeneracy, label)
		for k, v := range buckets {
			out[k] = contracts.Contribution{Contribution: v}
		}
		return out
	}

	// 헤지로 기여도가 상쇄되면 퍼센트가 과대해짐
	if math.Abs(total) < minNetShare*gross {
		status.Warn("%v: %s contributions largely offset (net %.1f%% of gross), percentages unstable",
			contracts.ErrNumericalDegeneracy, label, math.Abs(total)/gross*100)
	}

	for k, v := range buckets {
		out[k] = contracts.Contribution{
			Contribution: v,
			Percentage:   v / total * 100,
		}
	}
	return out
}

// Ranked returns bucket names ordered by contribution (largest first)
func Ranked(buckets map[string]contracts.Contribution) []string {
	names := make([]string, 0, len(buckets))
	for k := range buckets {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := buckets[names[i]].Contribution, buckets[names[j]].Contribution
		if ci == cj {
			return names[i] < names[j]
		}
		return ci > cj
	})
	return names
}
