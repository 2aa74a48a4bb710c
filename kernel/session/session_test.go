package session

import (
	"testing"
	"time"

	"github.com/flowforge/kernel/infrastructure/metrics"
	"github.com/flowforge/kernel/kernel/hooks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleStampsTimestamps(t *testing.T) {
	lc := NewLifecycle()
	ctx := &hooks.Context{Data: map[string]interface{}{}}

	_, err := lc.Start.Run(ctx)
	require.NoError(t, err)
	assert.Contains(t, ctx.Data, "start_timestamp")
	assert.Contains(t, ctx.Data, "created_at")

	time.Sleep(time.Millisecond)
	_, err = lc.End.Run(ctx)
	require.NoError(t, err)
	assert.Contains(t, ctx.Data, "session_duration_ms")
}

func TestReplayIDStable(t *testing.T) {
	r := ReplayableFor("session.start")
	assert.Equal(t, "session.start:1.0.0", r.ReplayID())
}

func TestPrivacyModeHashesSessionID(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(registry, NewMemoryMetricsStorage(), true, time.Hour, nil)

	collector.RecordLifecycle("start", "raw-session-id")

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() != "session_lifecycle_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "session_id" {
					assert.NotEqual(t, "raw-session-id", label.GetValue())
					found = true
				}
			}
		}
	}
	assert.True(t, found)
}

func TestCompletedStatusSerializesAsArchived(t *testing.T) {
	assert.True(t, StatusArchived.Completed())
	assert.False(t, StatusActive.Completed())
}

func TestWrapRecordsHookExecutionMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	svc := metrics.NewWithRegistry("kerneld-test", registry)
	collector := NewCollector(registry, NewMemoryMetricsStorage(), false, time.Hour, svc)

	lc := NewLifecycle()
	wrapped := collector.Wrap("kerneld-test", lc.Start)

	hctx := &hooks.Context{Point: hooks.SessionStart, Data: map[string]interface{}{"session_id": "sess-1"}}
	_, err := wrapped.Run(hctx)
	require.NoError(t, err)

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "hook_executions_total" {
			found = true
		}
	}
	assert.True(t, found, "expected Wrap to record into infrastructure/metrics' hook_executions_total series")
}
