package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-risk/pkg/config"
)

// entries decodes every JSON line written to buf
func entries(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var e map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e), sc.Text())
		out = append(out, e)
	}
	return out
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "test", LogLevel: "warn"}, &buf)

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown warn")
	log.Error("shown error")

	got := entries(t, &buf)
	require.Len(t, got, 2)
	assert.Equal(t, "warn", got[0]["level"])
	assert.Equal(t, "shown warn", got[0]["message"])
	assert.Equal(t, "error", got[1]["level"])
}

func TestNewWithWriter_ServiceFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "staging", LogLevel: "debug"}, &buf)

	log.WithRun("run_20260101_000000_abcd1234").WithComponent("brain").Info("Analysis completed")

	got := entries(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "aegis-risk", got[0]["service"])
	assert.Equal(t, "staging", got[0]["env"])
	assert.Equal(t, "run_20260101_000000_abcd1234", got[0]["run_id"])
	assert.Equal(t, "brain", got[0]["component"])
	assert.Contains(t, got[0], "time")
}

func TestWithFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&config.Config{Env: "test", LogLevel: "debug"}, &buf)

	base.WithField("section", "var").
		WithFields(map[string]interface{}{"sims": 10000, "degraded": false}).
		WithError(errors.New("simulation timeout")).
		Warn("Section degraded")

	got := entries(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "var", got[0]["section"])
	assert.Equal(t, float64(10000), got[0]["sims"])
	assert.Equal(t, false, got[0]["degraded"])
	assert.Equal(t, "simulation timeout", got[0]["error"])
}

func TestChildLoggersDoNotLeakFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&config.Config{Env: "test", LogLevel: "info"}, &buf)

	base.WithRun("r1").Info("child")
	base.Info("parent")

	got := entries(t, &buf)
	require.Len(t, got, 2)
	assert.Equal(t, "r1", got[0]["run_id"])
	assert.NotContains(t, got[1], "run_id")
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	assert.NotPanics(t, func() {
		log.WithRun("x").WithFields(map[string]interface{}{"k": 1}).Info("discarded")
	})
}
