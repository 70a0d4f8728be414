package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// =============================================================================
// Historical VaR
// =============================================================================

// CalculateVaR 손익 분포 기반 VaR 계산 (Historical Simulation)
// pnl: 일별 손익 (양수=이익, 음수=손실). $ 또는 수익률 모두 가능
// confidence: 신뢰수준 (예: 0.95, 0.99)
// 반환값: VaR/CVaR는 손실을 양수로 표현
func CalculateVaR(pnl []float64, confidence float64) VaRResult {
	if len(pnl) == 0 {
		return VaRResult{Confidence: confidence}
	}

	// 오름차순 정렬 (손실이 앞에)
	sorted := make([]float64, len(pnl))
	copy(sorted, pnl)
	sort.Float64s(sorted)

	return varFromSorted(sorted, confidence)
}

// varFromSorted 정렬된 손익에서 VaR/CVaR 계산
// 95% VaR = 하위 5 백분위수 (order statistic 선형 보간)
func varFromSorted(sorted []float64, confidence float64) VaRResult {
	threshold := Percentile(sorted, (1-confidence)*100)

	varValue := math.Max(0, -threshold)

	// CVaR: threshold 이하 손익의 평균 (tail 평균)
	var sum float64
	count := 0
	for _, v := range sorted {
		if v > threshold {
			break
		}
		sum += v
		count++
	}
	cvar := 0.0
	if count > 0 {
		cvar = math.Max(0, -sum/float64(count))
	}
	if cvar < varValue {
		cvar = varValue
	}

	return VaRResult{
		Confidence: confidence,
		VaR:        varValue,
		CVaR:       cvar,
	}
}

// =============================================================================
// Parametric VaR (정규분포 가정)
// =============================================================================

// CalculateParametricVaR 정규분포 가정 VaR 계산
// sigma: 1일 손익 표준편차 (σ_p)
// horizonDays: 보유 기간 (√t 스케일링)
func CalculateParametricVaR(sigma, confidence float64, horizonDays int) VaRResult {
	if sigma <= 0 || horizonDays <= 0 {
		return VaRResult{Confidence: confidence}
	}

	// 95%: 1.645, 99%: 2.326
	z := NormInv(confidence)
	scale := math.Sqrt(float64(horizonDays))

	varValue := math.Max(0, z*sigma*scale)

	// CVaR = σ φ(z) / (1-c)
	cvar := sigma * NormPDF(z) / (1 - confidence) * scale

	return VaRResult{
		Confidence: confidence,
		VaR:        varValue,
		CVaR:       cvar,
	}
}

// ScaleHorizon square-root-of-time 스케일링
func ScaleHorizon(oneDay float64, days int) float64 {
	return oneDay * math.Sqrt(float64(days))
}

// =============================================================================
// Component VaR (Euler)
// =============================================================================

// ComponentVaR Euler 배분: CVaR_i = w_i (Σw)_i / σ_p² × VaR
// Σ_i CVaR_i == VaR (σ_p² > 0 일 때)
func ComponentVaR(exposures, covTimesW []float64, totalVaR float64) []float64 {
	out := make([]float64, len(exposures))

	variance := 0.0
	for i := range exposures {
		variance += exposures[i] * covTimesW[i]
	}
	if variance <= 0 {
		return out
	}

	for i := range exposures {
		out[i] = exposures[i] * covTimesW[i] / variance * totalVaR
	}
	return out
}

// =============================================================================
// 통계 유틸리티
// =============================================================================

// PnLSeries 포트폴리오 $ 손익 시계열: P&L_t = Σ_i MV_i × r_it
func PnLSeries(exposures []float64, returns [][]float64) []float64 {
	if len(returns) == 0 {
		return nil
	}
	obs := len(returns[0])
	pnl := make([]float64, obs)
	for i, row := range returns {
		if i >= len(exposures) {
			break
		}
		for t := 0; t < obs && t < len(row); t++ {
			pnl[t] += exposures[i] * row[t]
		}
	}
	return pnl
}

// NormInv 표준정규분포 역함수 (Quantile Function)
func NormInv(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	return distuv.UnitNormal.Quantile(p)
}

// NormPDF 표준정규분포 확률밀도함수
func NormPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// Mean 평균 계산
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// StdDev 표본 표준편차 계산 (n-1)
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// Percentile 백분위수 계산
// sorted: 오름차순 정렬, p: 0~100
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	idx := p / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	// 선형 보간
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
