package brain

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/correlation"
)

// defaultSections wires each section to its engine
// 각 섹션은 AnalysisResult의 자기 필드만 기록 (공유 쓰기 없음)
func (o *Orchestrator) defaultSections() []sectionRunner {
	return []sectionRunner{
		{contracts.SectionVaR, o.runVaR},
		{contracts.SectionCorrelation, o.runCorrelation},
		{contracts.SectionStress, o.runStress},
		{contracts.SectionAttribution, o.runAttribution},
		{contracts.SectionLiquidity, o.runLiquidity},
		{contracts.SectionCounterparty, o.runCounterparty},
		{contracts.SectionBacktest, o.runBacktest},
	}
}

func (o *Orchestrator) runVaR(ctx context.Context, snap *contracts.Snapshot, model *correlation.Model, result *contracts.AnalysisResult) contracts.Status {
	m, st, err := o.varEngine.Compute(ctx, snap, model)
	if err != nil {
		return settle(ctx, st, err)
	}
	result.VaRMetrics = m
	return st
}

func (o *Orchestrator) runCorrelation(ctx context.Context, snap *contracts.Snapshot, model *correlation.Model, result *contracts.AnalysisResult) contracts.Status {
	cm, st, err := correlation.Analyze(model, snap.Weights())
	if err != nil {
		return settle(ctx, st, err)
	}
	result.CorrelationMatrix = cm
	return st
}

func (o *Orchestrator) runStress(ctx context.Context, snap *contracts.Snapshot, model *correlation.Model, result *contracts.AnalysisResult) contracts.Status {
	scenarios, st := o.stressEngine.Run(snap, o.model.Stress.Scenarios)
	result.StressScenarios = scenarios
	return st
}

func (o *Orchestrator) runAttribution(ctx context.Context, snap *contracts.Snapshot, model *correlation.Model, result *contracts.AnalysisResult) contracts.Status {
	a, st, err := o.attributionEngine.Compute(snap, model)
	if err != nil {
		return settle(ctx, st, err)
	}
	result.RiskAttribution = a
	return st
}

func (o *Orchestrator) runLiquidity(ctx context.Context, snap *contracts.Snapshot, model *correlation.Model, result *contracts.AnalysisResult) contracts.Status {
	profile, st := o.liquidityEngine.Compute(snap)
	result.LiquidityRisk = profile
	return st
}

func (o *Orchestrator) runCounterparty(ctx context.Context, snap *contracts.Snapshot, model *correlation.Model, result *contracts.AnalysisResult) contracts.Status {
	exposure, st := o.counterpartyEngine.Compute(snap)
	result.CounterpartyRisk = exposure
	return st
}

func (o *Orchestrator) runBacktest(ctx context.Context, snap *contracts.Snapshot, model *correlation.Model, result *contracts.AnalysisResult) contracts.Status {
	b, st, err := o.backtestEngine.Run(snap)
	if err != nil {
		return settle(ctx, st, err)
	}
	result.BacktestResult = b
	return st
}

// settle normalizes a failed section status
// 실행 타임아웃으로 중단된 섹션은 ErrSimulationTimeout으로 보고
func settle(ctx context.Context, st contracts.Status, err error) contracts.Status {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: run timeout: %v", contracts.ErrSimulationTimeout, err)
	}
	st.Available = false
	st.Error = err.Error()
	return st
}
