package brain

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/correlation"
	"github.com/wonny/aegis-risk/internal/metrics"
	"github.com/wonny/aegis-risk/internal/riskconfig"
	"github.com/wonny/aegis-risk/internal/snapshot"
	"github.com/wonny/aegis-risk/pkg/logger"
)

func newTestOrchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	model := riskconfig.Default()
	model.VaR.MonteCarlo.NumSimulations = 2000

	o, err := NewOrchestrator(model, opts, logger.NewNop())
	require.NoError(t, err)
	return o
}

// blockUntilDone replaces the backtest section with one that waits for cancellation on its first call
func blockUntilDone(o *Orchestrator, started chan<- struct{}) {
	var calls atomic.Int32
	for i := range o.sections {
		if o.sections[i].section != contracts.SectionBacktest {
			continue
		}
		o.sections[i].run = func(ctx context.Context, snap *contracts.Snapshot, model *correlation.Model, result *contracts.AnalysisResult) contracts.Status {
			if calls.Add(1) == 1 {
				close(started)
				<-ctx.Done()
				return settle(ctx, contracts.Unavailable(nil), context.Cause(ctx))
			}
			return contracts.OK()
		}
	}
}

func TestRun_Completed(t *testing.T) {
	m := metrics.New()
	o := newTestOrchestrator(t, Options{Metrics: m})
	assert.Equal(t, contracts.StateIdle, o.Status().State)

	result, err := o.Run(context.Background(), snapshot.Demo(42))
	require.NoError(t, err)

	assert.Equal(t, contracts.StateCompleted, result.State)
	assert.Equal(t, "demo", result.PortfolioID)
	assert.Equal(t, o.ModelHash(), result.ModelHash)
	assert.Len(t, result.Sections, len(contracts.AllSections()))
	for _, section := range contracts.AllSections() {
		assert.True(t, result.Sections[section].Available, section.String())
	}

	require.NotNil(t, result.VaRMetrics)
	require.NotNil(t, result.CorrelationMatrix)
	require.NotNil(t, result.RiskAttribution)
	require.NotNil(t, result.LiquidityRisk)
	require.NotNil(t, result.CounterpartyRisk)
	require.NotNil(t, result.BacktestResult)
	assert.Len(t, result.StressScenarios, len(riskconfig.DefaultScenarios()))

	// Σ component VaR == parametric VaR
	sum := 0.0
	for _, c := range result.VaRMetrics.ComponentVaR {
		sum += c
	}
	assert.InDelta(t, result.VaRMetrics.Parametric.VaR95_1d, sum, 1e-6*result.VaRMetrics.Parametric.VaR95_1d)

	st := o.Status()
	assert.Equal(t, contracts.StateCompleted, st.State)
	assert.Empty(t, st.RunID)
	assert.Equal(t, result.RunID, st.LastCompleted)
	assert.Same(t, result, o.Latest())
}

func TestRun_DoesNotMutateInput(t *testing.T) {
	o := newTestOrchestrator(t, Options{})
	snap := snapshot.Demo(5)
	before := snapshot.Demo(5)

	_, err := o.Run(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, before, snap)
}

func TestRun_InvalidInputBlocksRun(t *testing.T) {
	o := newTestOrchestrator(t, Options{})

	var ran atomic.Int32
	for i := range o.sections {
		o.sections[i].run = func(context.Context, *contracts.Snapshot, *correlation.Model, *contracts.AnalysisResult) contracts.Status {
			ran.Add(1)
			return contracts.OK()
		}
	}

	snap := snapshot.Demo(1)
	snap.Positions[0].Weight += 0.5

	result, err := o.Run(context.Background(), snap)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrInvalidInput))
	assert.Equal(t, contracts.StateFailed, result.State)
	assert.Empty(t, result.Sections)
	assert.Zero(t, ran.Load())
	assert.Equal(t, contracts.StateFailed, o.Status().State)
	assert.Nil(t, o.Latest())

	_, err = o.Run(context.Background(), nil)
	assert.True(t, errors.Is(err, contracts.ErrInvalidInput))
}

func TestRun_PanicIsolatedToSection(t *testing.T) {
	o := newTestOrchestrator(t, Options{})
	for i := range o.sections {
		if o.sections[i].section == contracts.SectionLiquidity {
			o.sections[i].run = func(context.Context, *contracts.Snapshot, *correlation.Model, *contracts.AnalysisResult) contracts.Status {
				panic("index out of range")
			}
		}
	}

	result, err := o.Run(context.Background(), snapshot.Demo(2))
	require.NoError(t, err)
	assert.Equal(t, contracts.StateCompleted, result.State)

	liq := result.Sections[contracts.SectionLiquidity]
	assert.False(t, liq.Available)
	assert.Contains(t, liq.Error, contracts.ErrEngineFailure.Error())
	assert.Nil(t, result.LiquidityRisk)

	assert.True(t, result.Sections[contracts.SectionVaR].Available)
	assert.True(t, result.Sections[contracts.SectionStress].Available)
	assert.True(t, result.Degraded())
}

func TestRun_NewRunSupersedesInFlight(t *testing.T) {
	o := newTestOrchestrator(t, Options{})
	started := make(chan struct{})
	blockUntilDone(o, started)

	type outcome struct {
		result *contracts.AnalysisResult
		err    error
	}
	first := make(chan outcome, 1)
	go func() {
		r, err := o.Run(context.Background(), snapshot.Demo(1))
		first <- outcome{r, err}
	}()

	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatal("first run never reached the blocking section")
	}
	assert.Equal(t, contracts.StateRunning, o.Status().State)

	second, err := o.Run(context.Background(), snapshot.Demo(2))
	require.NoError(t, err)

	got := <-first
	require.Error(t, got.err)
	assert.True(t, errors.Is(got.err, contracts.ErrRunSuperseded))
	assert.Equal(t, contracts.StateFailed, got.result.State)

	assert.Equal(t, contracts.StateCompleted, o.Status().State)
	assert.Equal(t, second.RunID, o.Latest().RunID)
}

func TestRun_InvalidTriggerKeepsInFlightRun(t *testing.T) {
	o := newTestOrchestrator(t, Options{})
	started := make(chan struct{})
	release := make(chan struct{})
	for i := range o.sections {
		if o.sections[i].section != contracts.SectionBacktest {
			continue
		}
		o.sections[i].run = func(ctx context.Context, snap *contracts.Snapshot, model *correlation.Model, result *contracts.AnalysisResult) contracts.Status {
			close(started)
			select {
			case <-release:
				return contracts.OK()
			case <-ctx.Done():
				return settle(ctx, contracts.Unavailable(nil), context.Cause(ctx))
			}
		}
	}

	type outcome struct {
		result *contracts.AnalysisResult
		err    error
	}
	first := make(chan outcome, 1)
	go func() {
		r, err := o.Run(context.Background(), snapshot.Demo(1))
		first <- outcome{r, err}
	}()

	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatal("valid run never reached the blocking section")
	}

	rejected, err := o.Run(context.Background(), &contracts.Snapshot{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrInvalidInput))
	assert.Equal(t, contracts.StateFailed, rejected.State)
	assert.Equal(t, contracts.StateRunning, o.Status().State)

	close(release)
	got := <-first
	require.NoError(t, got.err)
	assert.Equal(t, contracts.StateCompleted, got.result.State)
	assert.Equal(t, contracts.StateCompleted, o.Status().State)
	require.NotNil(t, o.Latest())
	assert.Equal(t, got.result.RunID, o.Latest().RunID)
}

func TestRun_TimeoutKeepsClosedFormVaR(t *testing.T) {
	model := riskconfig.Default()
	model.VaR.MonteCarlo.NumSimulations = 50_000_000
	model.VaR.MonteCarlo.MaxSimulations = 0
	model.VaR.MonteCarlo.Budget = 30 * time.Second

	o, err := NewOrchestrator(model, Options{RunTimeout: 300 * time.Millisecond}, logger.NewNop())
	require.NoError(t, err)

	result, err := o.Run(context.Background(), snapshot.Demo(7))
	require.NoError(t, err)
	assert.Equal(t, contracts.StateCompleted, result.State)

	st := result.Sections[contracts.SectionVaR]
	assert.True(t, st.Available)
	assert.True(t, st.Degraded)
	require.NotNil(t, result.VaRMetrics)
	assert.True(t, result.VaRMetrics.Historical.Available)
	assert.True(t, result.VaRMetrics.Parametric.Available)
	assert.False(t, result.VaRMetrics.MonteCarlo.Available)
}

func TestRun_TimeoutMarksSectionUnavailable(t *testing.T) {
	o := newTestOrchestrator(t, Options{RunTimeout: 200 * time.Millisecond})
	started := make(chan struct{})
	blockUntilDone(o, started)

	result, err := o.Run(context.Background(), snapshot.Demo(3))
	require.NoError(t, err)
	assert.Equal(t, contracts.StateCompleted, result.State)

	bt := result.Sections[contracts.SectionBacktest]
	assert.False(t, bt.Available)
	assert.True(t, strings.Contains(bt.Error, contracts.ErrSimulationTimeout.Error()))
}

func TestRun_CallerCancellation(t *testing.T) {
	o := newTestOrchestrator(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := o.Run(ctx, snapshot.Demo(4))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, contracts.StateFailed, result.State)
	assert.Nil(t, o.Latest())
}

func TestSubscribe_ReceivesRunEvents(t *testing.T) {
	o := newTestOrchestrator(t, Options{})
	events, unsubscribe := o.Subscribe()
	defer unsubscribe()

	result, err := o.Run(context.Background(), snapshot.Demo(9))
	require.NoError(t, err)

	var got []Event
	for len(got) < len(contracts.AllSections())+2 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d events received", len(got))
		}
	}

	assert.Equal(t, EventRunStarted, got[0].Type)
	assert.Equal(t, EventRunCompleted, got[len(got)-1].Type)

	sections := make(map[contracts.Section]bool)
	for _, ev := range got[1 : len(got)-1] {
		assert.Equal(t, EventSectionDone, ev.Type)
		assert.Equal(t, result.RunID, ev.RunID)
		require.NotNil(t, ev.Status)
		sections[ev.Section] = true
	}
	assert.Len(t, sections, len(contracts.AllSections()))
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	o := newTestOrchestrator(t, Options{})
	events, unsubscribe := o.Subscribe()
	unsubscribe()
	unsubscribe()

	_, open := <-events
	assert.False(t, open)
}

func TestNewOrchestrator_RejectsInvalidModel(t *testing.T) {
	model := riskconfig.Default()
	model.Attribution.Confidence = 1.5

	_, err := NewOrchestrator(model, Options{}, logger.NewNop())
	require.Error(t, err)
}

func TestScenariosReturnsCopy(t *testing.T) {
	o := newTestOrchestrator(t, Options{})
	s := o.Scenarios()
	require.NotEmpty(t, s)
	s[0].Name = "mutated"
	assert.NotEqual(t, "mutated", o.Scenarios()[0].Name)
}
