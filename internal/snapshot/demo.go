package snapshot

import (
	"math"
	"math/rand"
	"time"

	"github.com/wonny/aegis-risk/internal/contracts"
)

// demoPosition 데모 포트폴리오 구성 종목
type demoPosition struct {
	symbol       string
	quantity     float64
	price        float64
	sector       string
	class        contracts.AssetClass
	beta         float64
	vol          float64 // 연율
	duration     float64
	counterparty string
	depth        contracts.MarketDepth
}

var demoBook = []demoPosition{
	{"AAPL", 150, 190, "technology", contracts.AssetEquity, 1.2, 0.28, 0, "", contracts.MarketDepth{DailyVolume: 55_000_000, MarketCap: 2.9e12, BidAskSpread: 0.0001}},
	{"MSFT", 80, 410, "technology", contracts.AssetEquity, 1.1, 0.25, 0, "", contracts.MarketDepth{DailyVolume: 20_000_000, MarketCap: 3.0e12, BidAskSpread: 0.0001}},
	{"JPM", 120, 195, "financials", contracts.AssetEquity, 1.1, 0.24, 0, "", contracts.MarketDepth{DailyVolume: 9_000_000, MarketCap: 5.6e11, BidAskSpread: 0.0002}},
	{"XOM", 100, 115, "energy", contracts.AssetEquity, 0.8, 0.27, 0, "", contracts.MarketDepth{DailyVolume: 15_000_000, MarketCap: 4.6e11, BidAskSpread: 0.0002}},
	{"TLT", 150, 92, "government", contracts.AssetFixedIncome, 0, 0.15, 17, "BNY", contracts.MarketDepth{DailyVolume: 30_000_000, MarketCap: 5.5e10, BidAskSpread: 0.0001}},
	{"HYG", 200, 77, "high_yield", contracts.AssetCredit, 0.3, 0.08, 4, "BNY", contracts.MarketDepth{DailyVolume: 25_000_000, MarketCap: 1.5e10, BidAskSpread: 0.0002}},
	{"EURUSD", 20000, 1.08, "fx", contracts.AssetCurrency, 0, 0.07, 0, "GS", contracts.MarketDepth{DailyVolume: 1e9, MarketCap: 0, BidAskSpread: 0.00005}},
	{"GLD", 40, 215, "commodities", contracts.AssetCommodity, 0.1, 0.14, 0, "", contracts.MarketDepth{DailyVolume: 8_000_000, MarketCap: 6e10, BidAskSpread: 0.0001}},
	{"BTC", 0.5, 60000, "digital_assets", contracts.AssetCrypto, 1.5, 0.60, 0, "COINBASE", contracts.MarketDepth{DailyVolume: 400_000, MarketCap: 1.2e12, BidAskSpread: 0.0005}},
	{"SMLCAP", 3000, 12, "technology", contracts.AssetEquity, 1.4, 0.45, 0, "", contracts.MarketDepth{DailyVolume: 60_000, MarketCap: 4e8, BidAskSpread: 0.004}},
}

// DemoObservations 데모 수익률 lookback (1년)
const DemoObservations = 252

// Demo builds a deterministic multi-asset snapshot
// 동일 seed → 동일 스냅샷 (market/rates/credit 팩터 + 고유 변동)
func Demo(seed int64) *contracts.Snapshot {
	rng := rand.New(rand.NewSource(seed))
	sqrtT := math.Sqrt(252)

	snap := &contracts.Snapshot{
		PortfolioID: "demo",
		AsOf:        time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC),
		Positions:   make([]contracts.Position, 0, len(demoBook)),
		Returns:     make([][]float64, len(demoBook)),
		CounterpartyRef: map[string]contracts.CounterpartyRef{
			"BNY":      {Name: "BNY Mellon", ProbabilityDefault: 0.002, LossGivenDefault: 0.4},
			"GS":       {Name: "Goldman Sachs", ProbabilityDefault: 0.004, LossGivenDefault: 0.6, AdditionalExposure: 1500},
			"COINBASE": {Name: "Coinbase Custody", ProbabilityDefault: 0.03, LossGivenDefault: 0.8},
		},
		MarketDepthRef: make(map[string]contracts.MarketDepth, len(demoBook)),
	}

	gross := 0.0
	for _, d := range demoBook {
		gross += math.Abs(d.quantity * d.price)
	}

	for i, d := range demoBook {
		snap.Positions = append(snap.Positions, contracts.Position{
			Symbol:       d.symbol,
			Quantity:     d.quantity,
			Price:        d.price,
			Weight:       d.quantity * d.price / gross,
			Sector:       d.sector,
			AssetClass:   d.class,
			Beta:         d.beta,
			Volatility:   d.vol,
			Duration:     d.duration,
			Counterparty: d.counterparty,
		})
		snap.MarketDepthRef[d.symbol] = d.depth
		snap.Returns[i] = make([]float64, DemoObservations)
	}

	mktVol := 0.16 / sqrtT
	rateVol := 0.01 / sqrtT
	spreadVol := 0.008 / sqrtT

	for t := 0; t < DemoObservations; t++ {
		mkt := rng.NormFloat64() * mktVol
		dy := rng.NormFloat64() * rateVol
		ds := rng.NormFloat64() * spreadVol

		for i, d := range demoBook {
			var sys float64
			var sysVar float64
			switch d.class {
			case contracts.AssetFixedIncome:
				sys = -d.duration * dy
				sysVar = d.duration * d.duration * rateVol * rateVol
			case contracts.AssetCredit:
				sys = d.beta*mkt - d.duration*(dy+ds)
				sysVar = d.beta*d.beta*mktVol*mktVol + d.duration*d.duration*(rateVol*rateVol+spreadVol*spreadVol)
			default:
				sys = d.beta * mkt
				sysVar = d.beta * d.beta * mktVol * mktVol
			}

			total := d.vol / sqrtT
			idio := math.Sqrt(math.Max(total*total-sysVar, total*total*0.1))
			snap.Returns[i][t] = sys + idio*rng.NormFloat64()
		}
	}

	return snap
}
