package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/wonny/aegis-risk/internal/contracts"
)

// MonteCarloSimulator Monte Carlo 시뮬레이터
// 한 번의 Simulate 호출 전용 (rng는 goroutine-safe 하지 않음)
type MonteCarloSimulator struct {
	config MonteCarloConfig
	rng    *rand.Rand
	seed   int64
}

// NewMonteCarloSimulator 새 시뮬레이터 생성
// Seed 0 → entropy (실제 사용된 seed는 결과에 기록)
func NewMonteCarloSimulator(config MonteCarloConfig) *MonteCarloSimulator {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	if config.BatchSize <= 0 {
		config.BatchSize = DefaultMonteCarloConfig().BatchSize
	}
	if config.Method == "" {
		config.Method = MethodParametricNormal
	}

	return &MonteCarloSimulator{
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
		seed:   seed,
	}
}

// Seed returns the seed actually used
func (mc *MonteCarloSimulator) Seed() int64 {
	return mc.seed
}

// Simulate 포트폴리오 1일 $ 손익 시뮬레이션
// cov: 일간 공분산, exposures: $ 익스포저, returns: bootstrap용 과거 수익률 행렬
// 예산 초과 시 ErrSimulationTimeout, 상위 ctx 취소 시 ctx.Err()
func (mc *MonteCarloSimulator) Simulate(
	ctx context.Context,
	cov *mat.SymDense,
	exposures []float64,
	returns [][]float64,
) (*MonteCarloResult, error) {
	n := len(exposures)
	if n == 0 || cov == nil {
		return nil, fmt.Errorf("%w: empty exposures or covariance", contracts.ErrInvalidInput)
	}
	if r, _ := cov.Dims(); r != n {
		return nil, fmt.Errorf("%w: covariance %dx%d for %d exposures", contracts.ErrInvalidInput, r, r, n)
	}

	start := time.Now()
	result := &MonteCarloResult{
		RunID:  uuid.New().String(),
		Method: mc.config.Method,
		Seed:   mc.seed,
	}

	total := mc.config.NumSimulations
	if total <= 0 {
		total = DefaultMonteCarloConfig().NumSimulations
	}
	if mc.config.MaxSimulations > 0 && total > mc.config.MaxSimulations {
		total = mc.config.MaxSimulations
		result.Truncated = true
	}

	var draw func() float64
	switch mc.config.Method {
	case MethodHistoricalBootstrap:
		pnl := PnLSeries(exposures, returns)
		if len(pnl) == 0 {
			return nil, fmt.Errorf("%w: bootstrap needs a return history", contracts.ErrInvalidInput)
		}
		draw = func() float64 {
			return pnl[mc.rng.Intn(len(pnl))]
		}
	default:
		// wᵀ(Lz) == (Lᵀw)ᵀz → 익스포저를 먼저 투영해 draw당 O(n)
		b, degraded := projectedLoadings(cov, exposures)
		result.Degraded = degraded
		draw = func() float64 {
			s := 0.0
			for k := range b {
				s += b[k] * mc.rng.NormFloat64()
			}
			return s
		}
	}

	budgetCtx := ctx
	if mc.config.Budget > 0 {
		var cancel context.CancelFunc
		budgetCtx, cancel = context.WithTimeout(ctx, mc.config.Budget)
		defer cancel()
	}

	simulated := make([]float64, 0, min(total, maxPrealloc))
	for done := 0; done < total; {
		// 배치 경계에서 취소/예산 확인
		if err := budgetCtx.Err(); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %d/%d simulations after %s",
					contracts.ErrSimulationTimeout, done, total, time.Since(start).Round(time.Millisecond))
			}
			return nil, err
		}

		batch := mc.config.BatchSize
		if done+batch > total {
			batch = total - done
		}
		for i := 0; i < batch; i++ {
			simulated = append(simulated, draw())
		}
		done += batch
	}

	sort.Float64s(simulated)
	result.Simulations = len(simulated)
	result.VaR95 = varFromSorted(simulated, Confidence95)
	result.VaR99 = varFromSorted(simulated, Confidence99)
	result.Elapsed = time.Since(start)

	return result, nil
}

// maxPrealloc 결과 버퍼 선할당 상한 (예산 초과로 중단될 수 있음)
const maxPrealloc = 1 << 20

// maxCholeskyCond 이 조건수 이상이면 Cholesky 결과를 신뢰하지 않음
const maxCholeskyCond = 1e12

// projectedLoadings returns Lᵀw for a square root L of Σ (Σ = L Lᵀ)
// Cholesky 실패 (PSD/singular) → eigen 제곱근 V√Λ, degraded=true
func projectedLoadings(cov *mat.SymDense, w []float64) ([]float64, bool) {
	n := len(w)
	wv := mat.NewVecDense(n, append([]float64(nil), w...))

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); ok && chol.Cond() < maxCholeskyCond {
		var l mat.TriDense
		chol.LTo(&l)

		var b mat.VecDense
		b.MulVec(l.T(), wv)
		return b.RawVector().Data, false
	}

	var es mat.EigenSym
	if ok := es.Factorize(cov, true); !ok {
		// 분해 불가: 대각 분산만 사용
		b := make([]float64, n)
		for i := 0; i < n; i++ {
			b[i] = w[i] * math.Sqrt(math.Max(0, cov.At(i, i)))
		}
		return b, true
	}

	values := es.Values(nil)
	var vectors mat.Dense
	es.VectorsTo(&vectors)

	// A = V diag(√λ⁺) → Aᵀw
	b := make([]float64, n)
	for k := 0; k < n; k++ {
		lambda := math.Max(0, values[k])
		if lambda == 0 {
			continue
		}
		s := 0.0
		for i := 0; i < n; i++ {
			s += vectors.At(i, k) * w[i]
		}
		b[k] = math.Sqrt(lambda) * s
	}
	return b, true
}
