package counterparty

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/wonny/aegis-risk/internal/contracts"
)

// Engine 거래상대방 신용 리스크 엔진 (순수 계산기)
// ⭐ SSOT: EAD/EL 합산은 decimal로 수행 (부동소수 누적 오차 방지)
type Engine struct{}

// NewEngine 새 거래상대방 엔진 생성
func NewEngine() *Engine {
	return &Engine{}
}

// exposure 거래상대방별 누적 익스포저
type exposure struct {
	id      string
	ref     contracts.CounterpartyRef
	symbols []string
	ead     decimal.Decimal
}

// Compute 거래상대방별 EAD / EL
//   EAD = Σ|MV| + additionalExposure
//   EL  = EAD × PD × LGD
// 미등록 거래상대방 포지션은 제외하고 degraded 표시
func (e *Engine) Compute(snap *contracts.Snapshot) (*contracts.CounterpartyExposure, contracts.Status) {
	status := contracts.OK()
	result := &contracts.CounterpartyExposure{
		Counterparties: make([]contracts.CounterpartyDetail, 0, len(snap.CounterpartyRef)),
	}

	groups := make(map[string]*exposure, len(snap.CounterpartyRef))
	for id, ref := range snap.CounterpartyRef {
		groups[id] = &exposure{
			id:  id,
			ref: ref,
			ead: decimal.NewFromFloat(ref.AdditionalExposure),
		}
	}

	unassigned := 0
	for _, p := range snap.Positions {
		if p.Counterparty == "" {
			unassigned++
			continue
		}
		g, ok := groups[p.Counterparty]
		if !ok {
			result.Excluded = append(result.Excluded, p.Symbol)
			continue
		}
		g.symbols = append(g.symbols, p.Symbol)
		g.ead = g.ead.Add(decimal.NewFromFloat(p.MarketValue()).Abs())
	}

	if len(result.Excluded) > 0 {
		sort.Strings(result.Excluded)
		status.Warn("%v: positions reference unknown counterparties: %v", contracts.ErrMissingReferenceData, result.Excluded)
	}
	if len(snap.CounterpartyRef) == 0 && len(snap.Positions) > unassigned {
		status.Warn("%v: no counterparty reference supplied", contracts.ErrMissingReferenceData)
	}

	total := decimal.Zero
	totalEL := decimal.Zero
	ids := make([]string, 0, len(groups))
	for id, g := range groups {
		// 포지션도 추가 익스포저도 없는 참조는 생략
		if len(g.symbols) == 0 && g.ead.IsZero() {
			continue
		}
		ids = append(ids, id)
		total = total.Add(g.ead)
		totalEL = totalEL.Add(ExpectedLoss(g.ead, g.ref))
	}
	sort.Strings(ids)

	largest := decimal.Zero
	for _, id := range ids {
		g := groups[id]
		el := ExpectedLoss(g.ead, g.ref)

		share := decimal.Zero
		if total.IsPositive() {
			share = g.ead.Div(total)
		}
		if share.GreaterThan(largest) {
			largest = share
		}

		result.Counterparties = append(result.Counterparties, contracts.CounterpartyDetail{
			Counterparty:       id,
			Name:               g.ref.Name,
			Symbols:            g.symbols,
			ExposureAtDefault:  g.ead.InexactFloat64(),
			ProbabilityDefault: g.ref.ProbabilityDefault,
			LossGivenDefault:   g.ref.LossGivenDefault,
			ExpectedLoss:       el.InexactFloat64(),
			ExposureShare:      share.InexactFloat64(),
		})
	}

	result.TotalExposure = total.InexactFloat64()
	result.PortfolioExpectedLoss = totalEL.InexactFloat64()
	result.LargestExposureShare = largest.InexactFloat64()

	if unassigned > 0 {
		status.Note("%d positions carry no counterparty and are not counted", unassigned)
	}

	return result, status
}

// ExpectedLoss EL = EAD × PD × LGD
func ExpectedLoss(ead decimal.Decimal, ref contracts.CounterpartyRef) decimal.Decimal {
	return ead.
		Mul(decimal.NewFromFloat(ref.ProbabilityDefault)).
		Mul(decimal.NewFromFloat(ref.LossGivenDefault))
}
