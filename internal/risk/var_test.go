package risk

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateVaR_KnownDistribution(t *testing.T) {
	// -50 ... 49
	pnl := make([]float64, 100)
	for i := range pnl {
		pnl[i] = float64(i - 50)
	}
	rand.New(rand.NewSource(1)).Shuffle(len(pnl), func(i, j int) { pnl[i], pnl[j] = pnl[j], pnl[i] })

	res := CalculateVaR(pnl, Confidence95)

	// idx = 0.05 × 99 = 4.95 → -46×0.05 + -45×0.95
	assert.InDelta(t, 45.05, res.VaR, 1e-9)
	// tail: -50..-46
	assert.InDelta(t, 48.0, res.CVaR, 1e-9)
	assert.Equal(t, Confidence95, res.Confidence)
}

func TestCalculateVaR_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		pnl := make([]float64, 250)
		for i := range pnl {
			pnl[i] = rng.NormFloat64()*1000 + rng.ExpFloat64()*10
		}

		v95 := CalculateVaR(pnl, Confidence95)
		v99 := CalculateVaR(pnl, Confidence99)

		assert.GreaterOrEqual(t, v99.VaR, v95.VaR, "VaR99 >= VaR95")
		assert.GreaterOrEqual(t, v95.CVaR, v95.VaR, "CVaR95 >= VaR95")
		assert.GreaterOrEqual(t, v99.CVaR, v99.VaR, "CVaR99 >= VaR99")
	}
}

func TestCalculateVaR_NoLosses(t *testing.T) {
	res := CalculateVaR([]float64{1, 2, 3, 4, 5}, Confidence95)
	assert.Equal(t, 0.0, res.VaR)
	assert.Equal(t, 0.0, res.CVaR)

	empty := CalculateVaR(nil, Confidence99)
	assert.Equal(t, VaRResult{Confidence: Confidence99}, empty)
}

func TestCalculateVaR_DoesNotMutateInput(t *testing.T) {
	pnl := []float64{3, -1, 2, -5, 0}
	CalculateVaR(pnl, Confidence95)
	assert.Equal(t, []float64{3, -1, 2, -5, 0}, pnl)
}

func TestCalculateParametricVaR(t *testing.T) {
	sigma := 1000.0

	v95 := CalculateParametricVaR(sigma, Confidence95, 1)
	v99 := CalculateParametricVaR(sigma, Confidence99, 1)

	assert.InDelta(t, 1644.85, v95.VaR, 0.01)
	assert.InDelta(t, 2326.35, v99.VaR, 0.01)
	// σ φ(z)/(1-c): 2062.71 at 95%
	assert.InDelta(t, 2062.71, v95.CVaR, 0.01)
	assert.Greater(t, v95.CVaR, v95.VaR)

	v95_10 := CalculateParametricVaR(sigma, Confidence95, 10)
	assert.InDelta(t, v95.VaR*math.Sqrt(10), v95_10.VaR, 1e-9)

	assert.Equal(t, 0.0, CalculateParametricVaR(0, Confidence95, 1).VaR)
}

func TestComponentVaR_SumsToTotal(t *testing.T) {
	exposures := []float64{10000, 5000, -2000}
	covW := []float64{2.5, 1.1, -0.4}

	total := 1234.5
	comps := ComponentVaR(exposures, covW, total)

	sum := 0.0
	for _, c := range comps {
		sum += c
	}
	assert.InDelta(t, total, sum, 1e-9)

	// zero variance → zeros
	zero := ComponentVaR([]float64{1, 2}, []float64{0, 0}, 100)
	assert.Equal(t, []float64{0, 0}, zero)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{100, 5},
		{50, 3},
		{25, 2},
		{10, 1.4},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, Percentile(sorted, tt.p), 1e-12)
	}
	assert.Equal(t, 0.0, Percentile(nil, 5))
}

func TestStatsHelpers(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(values), 1e-12)
	assert.InDelta(t, 2.138089935, StdDev(values), 1e-9)
	assert.Equal(t, 0.0, StdDev([]float64{1}))

	assert.InDelta(t, 1.6448536, NormInv(0.95), 1e-6)
	assert.InDelta(t, 2.3263479, NormInv(0.99), 1e-6)
	assert.Equal(t, 0.0, NormInv(1))
	assert.InDelta(t, 0.3989423, NormPDF(0), 1e-6)
}

func TestPnLSeries(t *testing.T) {
	exposures := []float64{100, -50}
	returns := [][]float64{
		{0.01, -0.02, 0.03},
		{0.02, 0.01, -0.01},
	}

	pnl := PnLSeries(exposures, returns)
	require.Len(t, pnl, 3)
	assert.InDelta(t, 0.0, pnl[0], 1e-12)
	assert.InDelta(t, -2.5, pnl[1], 1e-12)
	assert.InDelta(t, 3.5, pnl[2], 1e-12)
}
