package brain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/aegis-risk/internal/attribution"
	"github.com/wonny/aegis-risk/internal/backtest"
	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/correlation"
	"github.com/wonny/aegis-risk/internal/counterparty"
	"github.com/wonny/aegis-risk/internal/liquidity"
	"github.com/wonny/aegis-risk/internal/metrics"
	"github.com/wonny/aegis-risk/internal/risk"
	"github.com/wonny/aegis-risk/internal/riskconfig"
	"github.com/wonny/aegis-risk/internal/stress"
	"github.com/wonny/aegis-risk/pkg/logger"
)

// Options 오케스트레이터 런타임 설정 (pkg/config RiskConfig에서 조립)
type Options struct {
	MaxParallel int
	RunTimeout  time.Duration
	Metrics     *metrics.Metrics
}

// DefaultOptions returns options matching the env defaults
func DefaultOptions() Options {
	return Options{
		MaxParallel: len(contracts.AllSections()),
		RunTimeout:  30 * time.Second,
	}
}

// RunStatus is a point-in-time view of the orchestrator
type RunStatus struct {
	State         contracts.RunState `json:"state"`
	RunID         string             `json:"runId,omitempty"`
	StartedAt     time.Time          `json:"startedAt,omitempty"`
	LastCompleted string             `json:"lastCompletedRunId,omitempty"`
	ModelHash     string             `json:"modelHash"`
}

// activeRun 진행 중인 실행 (취소 핸들)
type activeRun struct {
	id        string
	startedAt time.Time
	cancel    context.CancelCauseFunc
}

// sectionFunc 섹션 계산 (결과 필드 하나만 기록)
type sectionFunc func(ctx context.Context, snap *contracts.Snapshot, model *correlation.Model, result *contracts.AnalysisResult) contracts.Status

type sectionRunner struct {
	section contracts.Section
	run     sectionFunc
}

// Orchestrator coordinates one analysis run across all sub-engines
// ⭐ SSOT: 실행 상태와 AnalysisResult는 여기서만 작성
//
//	Validate → Freeze → Covariance → 7 sections (errgroup) → Join
type Orchestrator struct {
	model     *riskconfig.Config
	modelHash string
	opts      Options

	varEngine          *risk.Engine
	stressEngine       *stress.Engine
	attributionEngine  *attribution.Engine
	liquidityEngine    *liquidity.Engine
	counterpartyEngine *counterparty.Engine
	backtestEngine     *backtest.Engine

	sections []sectionRunner

	// mu는 상태 bookkeeping만 보호 (계산 중에는 잡지 않음)
	mu      sync.Mutex
	state   contracts.RunState
	current *activeRun
	latest  *contracts.AnalysisResult

	subMu       sync.Mutex
	subscribers map[int]chan Event
	nextSub     int

	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewOrchestrator creates an orchestrator for the given risk model
func NewOrchestrator(model *riskconfig.Config, opts Options, log *logger.Logger) (*Orchestrator, error) {
	if model == nil {
		model = riskconfig.Default()
	}
	if err := riskconfig.Validate(model); err != nil {
		return nil, err
	}
	hash, err := riskconfig.Hash(model)
	if err != nil {
		return nil, fmt.Errorf("hash risk model: %w", err)
	}

	defaults := DefaultOptions()
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = defaults.MaxParallel
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaults.RunTimeout
	}

	o := &Orchestrator{
		model:              model,
		modelHash:          hash,
		opts:               opts,
		varEngine:          risk.NewEngine(model.RiskConfig()),
		stressEngine:       stress.NewEngine(model.StressConfig()),
		attributionEngine:  attribution.NewEngine(model.AttributionConfig()),
		liquidityEngine:    liquidity.NewEngine(model.LiquidityConfig()),
		counterpartyEngine: counterparty.NewEngine(),
		backtestEngine:     backtest.NewEngine(model.BacktestConfig()),
		state:              contracts.StateIdle,
		subscribers:        make(map[int]chan Event),
		metrics:            opts.Metrics,
		logger:             log.WithComponent("brain"),
	}
	o.sections = o.defaultSections()

	return o, nil
}

// Run executes one analysis of the snapshot
// 실행 중 새 Run이 들어오면 이전 실행은 취소되고 ErrRunSuperseded 반환
func (o *Orchestrator) Run(ctx context.Context, snap *contracts.Snapshot) (*contracts.AnalysisResult, error) {
	run := &activeRun{
		id:        GenerateRunID(),
		startedAt: time.Now().UTC(),
	}
	log := o.logger.WithRun(run.id)

	result := &contracts.AnalysisResult{
		RunID:     run.id,
		State:     contracts.StateRunning,
		StartedAt: run.startedAt,
		ModelHash: o.modelHash,
		Sections:  make(map[contracts.Section]contracts.Status, len(o.sections)),
	}
	if snap != nil {
		result.PortfolioID = snap.PortfolioID
		result.AsOf = snap.AsOf
	}

	// === Validate (InvalidInput만 실행 차단) ===
	// 거부된 스냅샷은 실행이 아니므로 진행 중인 실행을 취소하지 않음
	if err := snap.Validate(o.model.ValidateOptions()); err != nil {
		log.WithError(err).Warn("Snapshot rejected")
		return o.reject(run, result, err)
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	run.cancel = cancel
	defer cancel(nil)

	o.begin(run)
	defer o.end(run)

	o.publish(Event{Type: EventRunStarted, RunID: run.id, State: contracts.StateRunning})

	// === Freeze ===
	frozen := snap.Clone()

	// === Covariance (실행당 1회) ===
	model, err := correlation.Estimate(frozen.Symbols(), frozen.Returns)
	if err != nil {
		log.WithError(err).Error("Covariance estimation failed")
		return o.fail(run, result, err)
	}

	log.WithFields(map[string]interface{}{
		"portfolio_id": frozen.PortfolioID,
		"positions":    len(frozen.Positions),
		"observations": frozen.Observations(),
		"max_parallel": o.opts.MaxParallel,
	}).Info("Starting risk analysis")

	// === Fan-out ===
	sectionCtx, cancelTimeout := context.WithTimeout(runCtx, o.opts.RunTimeout)
	defer cancelTimeout()

	statuses := make([]contracts.Status, len(o.sections))
	var g errgroup.Group
	g.SetLimit(o.opts.MaxParallel)
	for i, sr := range o.sections {
		g.Go(func() error {
			statuses[i] = o.runSection(sectionCtx, sr, frozen, model, result)
			st := statuses[i]
			o.publish(Event{Type: EventSectionDone, RunID: run.id, State: contracts.StateRunning, Section: sr.section, Status: &st})
			return nil
		})
	}
	_ = g.Wait()

	for i, sr := range o.sections {
		result.Sections[sr.section] = statuses[i]
	}

	// === Join ===
	if cause := context.Cause(runCtx); cause != nil {
		result.State = contracts.StateFailed
		result.Error = cause.Error()
		o.finish(result)

		if errors.Is(cause, contracts.ErrRunSuperseded) {
			log.Info("Run superseded by a newer trigger")
			o.metrics.ObserveSuperseded()
			o.publish(Event{Type: EventRunSuperseded, RunID: run.id, State: contracts.StateFailed, Error: cause.Error()})
			return result, cause
		}

		// 호출자 컨텍스트 취소
		o.setState(run, contracts.StateFailed, nil)
		o.metrics.ObserveRun(result)
		o.publish(Event{Type: EventRunFailed, RunID: run.id, State: contracts.StateFailed, Error: cause.Error()})
		return result, cause
	}

	result.State = contracts.StateCompleted
	o.finish(result)
	o.setState(run, contracts.StateCompleted, result)
	o.metrics.ObserveRun(result)

	log.WithFields(map[string]interface{}{
		"duration_ms": result.DurationMs,
		"degraded":    result.Degraded(),
	}).Info("Risk analysis completed")

	o.publish(Event{Type: EventRunCompleted, RunID: run.id, State: contracts.StateCompleted})
	return result, nil
}

// runSection runs one sub-engine, converting panics into an unavailable section
func (o *Orchestrator) runSection(ctx context.Context, sr sectionRunner, snap *contracts.Snapshot, model *correlation.Model, result *contracts.AnalysisResult) (status contracts.Status) {
	start := time.Now()
	log := o.logger.WithRun(result.RunID).WithField("section", sr.section.ShortName())

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %s panicked: %v", contracts.ErrEngineFailure, sr.section.ShortName(), r)
			log.WithError(err).Error("Section panicked")
			status = contracts.Unavailable(err)
		}
		o.metrics.ObserveSection(sr.section, time.Since(start))
	}()

	status = sr.run(ctx, snap, model, result)

	if !status.Available {
		log.WithField("error", status.Error).Warn("Section unavailable")
	} else if status.Degraded {
		log.WithField("warnings", status.Warnings).Debug("Section degraded")
	}
	return status
}

// ============================================================================
// State bookkeeping
// ============================================================================

func (o *Orchestrator) begin(run *activeRun) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil {
		o.logger.WithFields(map[string]interface{}{
			"superseded": o.current.id,
			"by":         run.id,
		}).Info("Cancelling in-flight run")
		o.current.cancel(contracts.ErrRunSuperseded)
	}
	o.current = run
	o.state = contracts.StateRunning
}

func (o *Orchestrator) end(run *activeRun) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == run {
		o.current = nil
	}
}

// setState는 현재 실행의 결과만 반영 (superseded 실행은 상태를 바꾸지 않음)
func (o *Orchestrator) setState(run *activeRun, state contracts.RunState, result *contracts.AnalysisResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != run {
		return
	}
	o.state = state
	if result != nil {
		o.latest = result
	}
}

func (o *Orchestrator) fail(run *activeRun, result *contracts.AnalysisResult, err error) (*contracts.AnalysisResult, error) {
	result.State = contracts.StateFailed
	result.Error = err.Error()
	o.finish(result)
	o.setState(run, contracts.StateFailed, nil)
	o.metrics.ObserveRun(result)
	o.publish(Event{Type: EventRunFailed, RunID: run.id, State: contracts.StateFailed, Error: result.Error})
	return result, err
}

// reject reports an invalid trigger; state changes only when nothing is in flight
func (o *Orchestrator) reject(run *activeRun, result *contracts.AnalysisResult, err error) (*contracts.AnalysisResult, error) {
	result.State = contracts.StateFailed
	result.Error = err.Error()
	o.finish(result)

	o.mu.Lock()
	if o.current == nil {
		o.state = contracts.StateFailed
	}
	o.mu.Unlock()

	o.metrics.ObserveRun(result)
	o.publish(Event{Type: EventRunFailed, RunID: run.id, State: contracts.StateFailed, Error: result.Error})
	return result, err
}

func (o *Orchestrator) finish(result *contracts.AnalysisResult) {
	result.FinishedAt = time.Now().UTC()
	result.DurationMs = result.FinishedAt.Sub(result.StartedAt).Milliseconds()
}

// ============================================================================
// Accessors
// ============================================================================

// Status returns the current orchestrator state
func (o *Orchestrator) Status() RunStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := RunStatus{State: o.state, ModelHash: o.modelHash}
	if o.current != nil {
		st.RunID = o.current.id
		st.StartedAt = o.current.startedAt
	}
	if o.latest != nil {
		st.LastCompleted = o.latest.RunID
	}
	return st
}

// Latest returns the last completed result (nil before the first completion)
func (o *Orchestrator) Latest() *contracts.AnalysisResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.latest
}

// Scenarios returns the predefined scenario library
func (o *Orchestrator) Scenarios() []contracts.ScenarioDefinition {
	return append([]contracts.ScenarioDefinition(nil), o.model.Stress.Scenarios...)
}

// Model returns the active risk model
func (o *Orchestrator) Model() *riskconfig.Config {
	return o.model
}

// ModelHash returns the SHA-256 of the active risk model
func (o *Orchestrator) ModelHash() string {
	return o.modelHash
}

// GenerateRunID generates a unique run ID
func GenerateRunID() string {
	return fmt.Sprintf("run_%s_%s", time.Now().UTC().Format("20060102_150405"), uuid.NewString()[:8])
}
