package liquidity

import (
	"math"
	"sort"

	"github.com/wonny/aegis-risk/internal/contracts"
)

// PolicyMax 포트폴리오 청산기간 = 종목별 최대값 (병렬 청산 가정)
const PolicyMax = "max"

// Config 유동성 리스크 설정
type Config struct {
	ParticipationRate float64 `json:"participation_rate" yaml:"participation_rate"` // ADV 대비 일일 매도 한도
	SpreadScale       float64 `json:"spread_scale" yaml:"spread_scale"`             // s₀: score 0.5가 되는 spread
	DaysScale         float64 `json:"days_scale" yaml:"days_scale"`                 // t₀: 추가 청산일 감쇠 척도
}

// DefaultConfig returns the default liquidity configuration
func DefaultConfig() Config {
	return Config{
		ParticipationRate: 0.20,
		SpreadScale:       0.005,
		DaysScale:         5,
	}
}

// Engine 유동성 리스크 엔진 (순수 계산기)
type Engine struct {
	config Config
}

// NewEngine 새 유동성 엔진 생성
func NewEngine(config Config) *Engine {
	if config.ParticipationRate <= 0 {
		config.ParticipationRate = DefaultConfig().ParticipationRate
	}
	return &Engine{config: config}
}

// Compute 종목별 유동성 프로파일 + 포트폴리오 집계
// depth 누락 / 거래량 ≤ 0 종목은 제외하고 degraded 표시
func (e *Engine) Compute(snap *contracts.Snapshot) (*contracts.LiquidityProfile, contracts.Status) {
	status := contracts.OK()
	profile := &contracts.LiquidityProfile{
		Positions: make([]contracts.PositionLiquidity, 0, len(snap.Positions)),
	}

	var (
		mvTotal   float64
		spreadSum float64
		scoreSum  float64
		costSum   float64
		maxTTL    int
	)

	for _, p := range snap.Positions {
		if p.Class() == contracts.AssetCash {
			continue
		}

		depth, ok := snap.MarketDepthRef[p.Symbol]
		if !ok || depth.DailyVolume <= 0 {
			profile.Excluded = append(profile.Excluded, p.Symbol)
			continue
		}

		pl := e.Position(p, depth)
		profile.Positions = append(profile.Positions, pl)

		mv := math.Abs(p.MarketValue())
		mvTotal += mv
		spreadSum += mv * pl.BidAskSpread
		scoreSum += mv * pl.LiquidityScore
		costSum += pl.LiquidationCost
		if pl.TimeToLiquidate > maxTTL {
			maxTTL = pl.TimeToLiquidate
		}
	}

	if len(profile.Excluded) > 0 {
		sort.Strings(profile.Excluded)
		status.Warn("%v: no usable market depth for %v", contracts.ErrMissingReferenceData, profile.Excluded)
	}

	profile.Aggregate = contracts.LiquidityAggregate{
		TimeToLiquidatePortfolio: maxTTL,
		LiquidationCost:          costSum,
		LiquidationPolicy:        PolicyMax,
	}
	if mvTotal > 0 {
		profile.Aggregate.AverageSpread = spreadSum / mvTotal
		profile.Aggregate.LiquidityRiskScore = 1 - scoreSum/mvTotal
	} else if len(profile.Positions) == 0 && len(profile.Excluded) > 0 {
		status.Warn("%v: liquidity aggregate has no covered positions", contracts.ErrMissingReferenceData)
	}

	return profile, status
}

// Position 단일 종목 유동성
//   TTL   = ⌈|qty| / (ADV × participation)⌉
//   score = 1/(1+spread/s₀) × 1/(1+max(TTL−1,0)/t₀)
func (e *Engine) Position(p contracts.Position, depth contracts.MarketDepth) contracts.PositionLiquidity {
	ttl := TimeToLiquidate(p.Quantity, depth.DailyVolume, e.config.ParticipationRate)

	pl := contracts.PositionLiquidity{
		Symbol:          p.Symbol,
		BidAskSpread:    depth.BidAskSpread,
		DailyVolume:     depth.DailyVolume,
		TimeToLiquidate: ttl,
		LiquidityScore:  e.Score(depth.BidAskSpread, ttl),
		// 매도 시 half-spread 비용
		LiquidationCost: math.Abs(p.MarketValue()) * depth.BidAskSpread / 2,
	}
	if depth.MarketCap > 0 {
		pl.VolumeToMarketCap = depth.DailyVolume * p.Price / depth.MarketCap
	}
	return pl
}

// TimeToLiquidate returns whole days needed to exit |qty| at participation × ADV per day
func TimeToLiquidate(quantity, dailyVolume, participation float64) int {
	qty := math.Abs(quantity)
	if qty == 0 {
		return 0
	}
	capacity := dailyVolume * participation
	if capacity <= 0 {
		return math.MaxInt32
	}
	days := math.Ceil(qty / capacity)
	if days >= math.MaxInt32 || math.IsNaN(days) {
		return math.MaxInt32
	}
	return int(days)
}

// Score 유동성 점수 ∈ (0,1], 1 = 가장 유동적
func (e *Engine) Score(spread float64, ttl int) float64 {
	s := 1.0
	if e.config.SpreadScale > 0 {
		s /= 1 + math.Max(0, spread)/e.config.SpreadScale
	}
	if e.config.DaysScale > 0 {
		extra := math.Max(float64(ttl-1), 0)
		s /= 1 + extra/e.config.DaysScale
	}
	return s
}
