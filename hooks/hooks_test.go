package hooks

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/filter-engine/core"
	apperrors "github.com/Skryldev/filter-engine/errors"
)

func TestZerologLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(zerolog.New(&buf)).Component("engine")
	l.Warn("usage.dropped", "user", "u1", "count", 3, "error", errors.New("boom"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "engine", line["component"])
	assert.Equal(t, "u1", line["user"])
	assert.Equal(t, float64(3), line["count"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "usage.dropped", line["message"])
}

func TestZerologLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))
	l.Debug("hidden")
	assert.Zero(t, buf.Len())
	l.Info("shown", "odd")
	assert.True(t, strings.Contains(buf.String(), `"extra":"odd"`))
}

func TestMetricsHook_InMemory(t *testing.T) {
	m := NewInMemoryMetrics()
	h := NewMetricsHook(m)
	ctx := context.Background()

	h.AfterStep(ctx, "encode", &core.ImageData{Meta: core.Metadata{SizeBytes: 512}}, 3*time.Millisecond, nil)
	h.AfterStep(ctx, "decode", nil, time.Millisecond, apperrors.New(apperrors.CategoryDecode, "decode", errors.New("bad")))
	m.RecordEvent("task_dropped")

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.StepCalls["encode"])
	assert.Equal(t, int64(3), snap.StepDurationsMs["encode"])
	assert.Equal(t, int64(1), snap.StepErrors["decode"])
	assert.Equal(t, int64(512), snap.TotalThroughputB)
	assert.Equal(t, int64(1), snap.Events["task_dropped"])
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheusMetrics(reg, "test")
	h := NewMetricsHook(p)
	ctx := context.Background()

	h.AfterStep(ctx, "encode", &core.ImageData{Meta: core.Metadata{SizeBytes: 100}}, time.Millisecond, nil)
	h.AfterStep(ctx, "decode", nil, time.Millisecond, apperrors.New(apperrors.CategoryDecode, "decode", errors.New("bad")))
	p.RecordEvent("provider_call")
	p.RecordEvent("provider_call")

	assert.Equal(t, float64(100), testutil.ToFloat64(p.throughput))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.stepErrors.WithLabelValues("decode", "decode")))
	assert.Equal(t, float64(2), testutil.ToFloat64(p.events.WithLabelValues("provider_call")))

	// a second collector on its own registry must not panic on registration
	require.NotPanics(t, func() { NewPrometheusMetrics(prometheus.NewRegistry(), "") })
}
