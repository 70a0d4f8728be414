package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-risk/internal/brain"
	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/riskconfig"
	"github.com/wonny/aegis-risk/internal/snapshot"
	"github.com/wonny/aegis-risk/pkg/logger"
)

type fakeAnalyzer struct {
	err    error
	got    *contracts.Snapshot
	latest *contracts.AnalysisResult
}

func (f *fakeAnalyzer) Run(ctx context.Context, snap *contracts.Snapshot) (*contracts.AnalysisResult, error) {
	f.got = snap
	result := &contracts.AnalysisResult{RunID: "run_test", State: contracts.StateCompleted}
	if f.err != nil {
		result.State = contracts.StateFailed
		result.Error = f.err.Error()
		return result, f.err
	}
	f.latest = result
	return result, nil
}

func (f *fakeAnalyzer) Status() brain.RunStatus {
	return brain.RunStatus{State: contracts.StateIdle, ModelHash: "abc"}
}

func (f *fakeAnalyzer) Latest() *contracts.AnalysisResult {
	return f.latest
}

func (f *fakeAnalyzer) Scenarios() []contracts.ScenarioDefinition {
	return riskconfig.DefaultScenarios()
}

func post(h http.HandlerFunc, target string, body []byte) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body)))
	return rec
}

func TestAnalyze_ErrorMapping(t *testing.T) {
	body, err := json.Marshal(snapshot.Demo(1))
	require.NoError(t, err)

	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"ok", nil, http.StatusOK, ""},
		{"invalid input", contracts.ValidationError{Field: "positions", Message: "required"}, http.StatusBadRequest, "invalid_input"},
		{"superseded", contracts.ErrRunSuperseded, http.StatusConflict, "run_superseded"},
		{"engine failure", fmt.Errorf("boom: %w", contracts.ErrEngineFailure), http.StatusInternalServerError, "engine_failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAnalyzer{err: tt.err}
			h := NewRiskHandler(fa, 0, 0, logger.NewNop())

			rec := post(h.Analyze, "/api/v1/risk/analyze", body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			require.NotNil(t, fa.got)
			assert.Equal(t, "demo", fa.got.PortfolioID)

			if tt.err != nil {
				var body errorBody
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.code, body.Code)
				require.NotNil(t, body.Result)
				assert.Equal(t, contracts.StateFailed, body.Result.State)
			}
		})
	}
}

func TestAnalyze_BadBody(t *testing.T) {
	fa := &fakeAnalyzer{}
	h := NewRiskHandler(fa, 0, 0, logger.NewNop())

	rec := post(h.Analyze, "/api/v1/risk/analyze", []byte(`{"positons": []}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, fa.got, "analyzer must not run on a malformed body")

	rec = post(h.Analyze, "/api/v1/risk/analyze?demo=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_DemoSeed(t *testing.T) {
	fa := &fakeAnalyzer{}
	h := NewRiskHandler(fa, 0, 0, logger.NewNop())

	rec := post(h.Analyze, "/api/v1/risk/analyze?demo=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, snapshot.Demo(7), fa.got)
}

func TestAnalyze_RateLimited(t *testing.T) {
	h := NewRiskHandler(&fakeAnalyzer{}, 0.001, 1, logger.NewNop())

	assert.Equal(t, http.StatusOK, post(h.Analyze, "/api/v1/risk/analyze?demo=1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(h.Analyze, "/api/v1/risk/analyze?demo=1", nil).Code)
}

func TestGetLatest(t *testing.T) {
	fa := &fakeAnalyzer{}
	h := NewRiskHandler(fa, 0, 0, logger.NewNop())

	rec := httptest.NewRecorder()
	h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/v1/risk/latest", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	post(h.Analyze, "/api/v1/risk/analyze?demo=1", nil)

	rec = httptest.NewRecorder()
	h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/v1/risk/latest", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got contracts.AnalysisResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "run_test", got.RunID)
}

func TestGetScenariosAndStatus(t *testing.T) {
	h := NewRiskHandler(&fakeAnalyzer{}, 0, 0, logger.NewNop())

	rec := httptest.NewRecorder()
	h.GetScenarios(rec, httptest.NewRequest(http.MethodGet, "/api/v1/risk/scenarios", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count     int                            `json:"count"`
		Scenarios []contracts.ScenarioDefinition `json:"scenarios"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, len(riskconfig.DefaultScenarios()), body.Count)
	assert.Equal(t, "2008 Financial Crisis", body.Scenarios[0].Name)

	rec = httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/risk/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"IDLE"`)
}
