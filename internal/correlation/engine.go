package correlation

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/aegis-risk/internal/contracts"
)

const (
	// zeroVolEpsilon 일간 표준편차가 이 값 미만이면 변동성 0으로 간주
	zeroVolEpsilon = 1e-12

	// nearSingularRatio λmin/λmax 가 이 값 미만이면 near-singular
	nearSingularRatio = 1e-10
)

// Model is the covariance estimate shared (read-only) by all sub-engines of a run
// ⭐ SSOT: 공분산은 실행당 1회만 추정
type Model struct {
	Symbols      []string
	Covariance   *mat.SymDense // daily returns, n−1 denominator
	Correlation  *mat.SymDense // Pearson, diag 1
	Vols         []float64     // daily sample std
	ZeroVol      []string      // symbols with σ == 0
	Observations int
}

// Size returns the instrument count
func (m *Model) Size() int {
	return len(m.Symbols)
}

// Estimate builds the covariance/correlation model from per-instrument return rows
// returns[i] is the series of symbols[i]; rows must be equal length
func Estimate(symbols []string, returns [][]float64) (*Model, error) {
	n := len(returns)
	if n == 0 {
		return nil, fmt.Errorf("%w: no return series", contracts.ErrInvalidInput)
	}
	if len(symbols) != n {
		return nil, fmt.Errorf("%w: %d symbols for %d return rows", contracts.ErrInvalidInput, len(symbols), n)
	}

	obs := len(returns[0])
	if obs < 2 {
		return nil, fmt.Errorf("%w: need at least 2 observations, got %d", contracts.ErrInvalidInput, obs)
	}

	// stat.CovarianceMatrix: 행 = 관측치, 열 = 변수
	x := mat.NewDense(obs, n, nil)
	for i, row := range returns {
		if len(row) != obs {
			return nil, fmt.Errorf("%w: return row %d has %d observations, want %d", contracts.ErrInvalidInput, i, len(row), obs)
		}
		for t, r := range row {
			x.Set(t, i, r)
		}
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, x, nil)

	m := &Model{
		Symbols:      append([]string(nil), symbols...),
		Covariance:   cov,
		Vols:         make([]float64, n),
		Observations: obs,
	}

	for i := 0; i < n; i++ {
		v := cov.At(i, i)
		if v < 0 {
			v = 0
		}
		m.Vols[i] = math.Sqrt(v)
		if m.Vols[i] < zeroVolEpsilon {
			m.Vols[i] = 0
			m.ZeroVol = append(m.ZeroVol, symbols[i])
		}
	}

	// ρ_ij = Σ_ij / (σ_i σ_j), zero-vol → uncorrelated
	corr := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		corr.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			rho := 0.0
			if m.Vols[i] > 0 && m.Vols[j] > 0 {
				rho = cov.At(i, j) / (m.Vols[i] * m.Vols[j])
				rho = math.Max(-1, math.Min(1, rho))
			}
			corr.SetSym(i, j, rho)
		}
	}
	m.Correlation = corr

	return m, nil
}

// CovTimes returns Σw
func (m *Model) CovTimes(w []float64) []float64 {
	n := m.Size()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		s := 0.0
		for j := 0; j < n; j++ {
			s += m.Covariance.At(i, j) * w[j]
		}
		out[i] = s
	}
	return out
}

// PortfolioVariance returns wᵀΣw (floored at 0)
func (m *Model) PortfolioVariance(w []float64) float64 {
	sw := m.CovTimes(w)
	v := 0.0
	for i := range w {
		v += w[i] * sw[i]
	}
	if v < 0 {
		return 0
	}
	return v
}

// Analyze produces the correlation section from the model and position weights
func Analyze(m *Model, weights []float64) (*contracts.CorrelationMatrix, contracts.Status, error) {
	status := contracts.OK()
	n := m.Size()
	if len(weights) != n {
		return nil, contracts.Unavailable(nil), fmt.Errorf("%w: %d weights for %d instruments", contracts.ErrInvalidInput, len(weights), n)
	}

	out := &contracts.CorrelationMatrix{
		Symbols:        append([]string(nil), m.Symbols...),
		Matrix:         make([][]float64, n),
		ZeroVolatility: append([]string(nil), m.ZeroVol...),
	}
	for i := 0; i < n; i++ {
		out.Matrix[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			out.Matrix[i][j] = m.Correlation.At(i, j)
		}
	}

	eigen, clipped, err := Spectrum(m.Correlation)
	if err != nil {
		return nil, contracts.Unavailable(err), err
	}
	out.Eigenvalues = eigen

	trace := 0.0
	for _, l := range eigen {
		trace += l
	}
	if trace > 0 {
		out.ConcentrationRisk = eigen[0] / trace
	}
	if clipped > 0 || (eigen[0] > 0 && eigen[n-1]/eigen[0] < nearSingularRatio) {
		out.NearSingular = true
		status.Warn("correlation matrix is near-singular (%d eigenvalues clipped)", clipped)
	}

	for _, w := range weights {
		out.HerfindahlIndex += w * w
	}

	out.DiversificationRatio = meanAbsOffDiagonal(out.Matrix)

	if len(m.ZeroVol) > 0 {
		status.Warn("%v: %d zero-volatility instruments treated as uncorrelated", contracts.ErrNumericalDegeneracy, len(m.ZeroVol))
	}

	return out, status, nil
}

// Spectrum returns eigenvalues sorted descending with negatives clipped to zero
// clipped = number of eigenvalues raised to zero
func Spectrum(s *mat.SymDense) ([]float64, int, error) {
	var es mat.EigenSym
	if ok := es.Factorize(s, false); !ok {
		return nil, 0, fmt.Errorf("%w: eigen-decomposition did not converge", contracts.ErrNumericalDegeneracy)
	}

	values := es.Values(nil)
	sort.Sort(sort.Reverse(sort.Float64Slice(values)))

	clipped := 0
	for i, l := range values {
		if l < 0 {
			values[i] = 0
			clipped++
		}
	}
	return values, clipped, nil
}

func meanAbsOffDiagonal(m [][]float64) float64 {
	n := len(m)
	if n < 2 {
		// 단일 종목: 분산 효과 없음
		return 1.0
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				sum += math.Abs(m[i][j])
			}
		}
	}
	return sum / float64(n*(n-1))
}
