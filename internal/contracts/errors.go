package contracts

import (
	"errors"
	"fmt"
)

// Error taxonomy
// InvalidInput만 실행을 차단함. 나머지는 섹션 단위로 degrade/unavailable 처리
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrNumericalDegeneracy  = errors.New("numerical degeneracy")
	ErrSimulationTimeout    = errors.New("simulation timeout")
	ErrMissingReferenceData = errors.New("missing reference data")
	ErrEngineFailure        = errors.New("engine failure")
	ErrRunSuperseded        = errors.New("run superseded by a newer trigger")
)

// ValidationError 입력 검증 실패 (실행 차단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidInput.Error(), e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match
func (e ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Status is the per-section availability flag carried on every result
type Status struct {
	Available bool     `json:"available"`
	Degraded  bool     `json:"degraded"`
	Error     string   `json:"error,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// OK returns an available, non-degraded status
func OK() Status {
	return Status{Available: true}
}

// Unavailable returns a status describing a failed section
func Unavailable(err error) Status {
	s := Status{Available: false}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// Warn appends a warning and marks the section degraded
func (s *Status) Warn(format string, args ...interface{}) {
	s.Degraded = true
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// Note appends an informational warning without degrading the section
func (s *Status) Note(format string, args ...interface{}) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}
