package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/aegis-risk/internal/contracts"
)

// errorBody 에러 응답 본문
// result는 실패한 실행의 부분 결과 (섹션 상태 포함)
type errorBody struct {
	Error  string                    `json:"error"`
	Code   string                    `json:"code,omitempty"`
	Result *contracts.AnalysisResult `json:"result,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// 헤더 전송 후라 인코딩 실패는 복구 불가
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

// respondRunError writes a failed run with its error code and partial result
func respondRunError(w http.ResponseWriter, err error, result *contracts.AnalysisResult) {
	respondJSON(w, statusFor(err), errorBody{
		Error:  err.Error(),
		Code:   errorCode(err),
		Result: result,
	})
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, contracts.ErrRunSuperseded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorCode returns a stable machine-readable code for UI clients
func errorCode(err error) string {
	switch {
	case errors.Is(err, contracts.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, contracts.ErrRunSuperseded):
		return "run_superseded"
	case errors.Is(err, contracts.ErrSimulationTimeout):
		return "simulation_timeout"
	case errors.Is(err, contracts.ErrNumericalDegeneracy):
		return "numerical_degeneracy"
	case errors.Is(err, contracts.ErrMissingReferenceData):
		return "missing_reference_data"
	case errors.Is(err, contracts.ErrEngineFailure):
		return "engine_failure"
	default:
		return "internal"
	}
}
