package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/wonny/aegis-risk/internal/brain"
	"github.com/wonny/aegis-risk/pkg/logger"
)

// pingTimeout 의존성 하나당 health check 제한 시간
const pingTimeout = 2 * time.Second

// Pinger is a dependency that can report liveness (postgres, redis)
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusSource reports the orchestrator run state
type StatusSource interface {
	Status() brain.RunStatus
}

// HealthHandler serves GET /health
type HealthHandler struct {
	status StatusSource
	deps   map[string]Pinger
	logger *logger.Logger
}

// NewHealthHandler creates a health handler; deps may be empty
func NewHealthHandler(status StatusSource, deps map[string]Pinger, log *logger.Logger) *HealthHandler {
	if deps == nil {
		deps = map[string]Pinger{}
	}
	return &HealthHandler{
		status: status,
		deps:   deps,
		logger: log.WithComponent("api.health"),
	}
}

type healthBody struct {
	Status       string            `json:"status"`
	Service      string            `json:"service"`
	State        string            `json:"state"`
	ModelHash    string            `json:"modelHash,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Check pings every dependency; any failure answers 503 "degraded"
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	st := h.status.Status()
	body := healthBody{
		Status:    "ok",
		Service:   "aegis-risk-api",
		State:     string(st.State),
		ModelHash: st.ModelHash,
	}

	names := make([]string, 0, len(h.deps))
	for name := range h.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) > 0 {
		body.Dependencies = make(map[string]string, len(names))
	}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		err := h.deps[name].Ping(ctx)
		cancel()

		if err != nil {
			h.logger.WithError(err).WithField("dependency", name).Warn("Health check failed")
			body.Dependencies[name] = err.Error()
			body.Status = "degraded"
			continue
		}
		body.Dependencies[name] = "ok"
	}

	code := http.StatusOK
	if body.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, body)
}
