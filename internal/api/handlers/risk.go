package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/wonny/aegis-risk/internal/brain"
	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/snapshot"
	"github.com/wonny/aegis-risk/pkg/logger"
)

// maxSnapshotBytes 분석 요청 본문 상한
const maxSnapshotBytes = 32 << 20

// Analyzer is the orchestrator surface used by the HTTP API
type Analyzer interface {
	Run(ctx context.Context, snap *contracts.Snapshot) (*contracts.AnalysisResult, error)
	Status() brain.RunStatus
	Latest() *contracts.AnalysisResult
	Scenarios() []contracts.ScenarioDefinition
}

// RiskHandler handles risk analysis API endpoints
// ⭐ SSOT: 리스크 분석 API 핸들러는 여기서만
type RiskHandler struct {
	analyzer Analyzer
	limiter  *rate.Limiter
	logger   *logger.Logger
}

// NewRiskHandler creates a new risk handler
// rps <= 0 이면 분석 요청 제한 없음
func NewRiskHandler(analyzer Analyzer, rps float64, burst int, log *logger.Logger) *RiskHandler {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}

	return &RiskHandler{
		analyzer: analyzer,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   log.WithComponent("api.risk"),
	}
}

// Analyze runs one analysis
// POST /api/v1/risk/analyze            body: snapshot JSON
// POST /api/v1/risk/analyze?demo=42    built-in demo book (seed 42)
func (h *RiskHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		respondError(w, http.StatusTooManyRequests, "Too many analysis requests")
		return
	}

	snap, err := h.readSnapshot(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.analyzer.Run(r.Context(), snap)
	if err != nil {
		h.logger.WithError(err).WithField("code", errorCode(err)).Warn("Analysis request failed")
		respondRunError(w, err, result)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetStatus returns the orchestrator state
// GET /api/v1/risk/status
func (h *RiskHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.analyzer.Status())
}

// GetLatest returns the last completed result
// GET /api/v1/risk/latest
func (h *RiskHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	latest := h.analyzer.Latest()
	if latest == nil {
		respondError(w, http.StatusNotFound, "No completed analysis yet")
		return
	}
	respondJSON(w, http.StatusOK, latest)
}

// GetScenarios returns the predefined scenario library
// GET /api/v1/risk/scenarios
func (h *RiskHandler) GetScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios := h.analyzer.Scenarios()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(scenarios),
		"scenarios": scenarios,
	})
}

func (h *RiskHandler) readSnapshot(w http.ResponseWriter, r *http.Request) (*contracts.Snapshot, error) {
	if demo := r.URL.Query().Get("demo"); demo != "" {
		seed, err := strconv.ParseInt(demo, 10, 64)
		if err != nil {
			return nil, errors.New("demo must be an integer seed")
		}
		return snapshot.Demo(seed), nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSnapshotBytes))
	if err != nil {
		return nil, err
	}
	return snapshot.Decode(body, snapshot.FormatJSON)
}
