package workflow

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/kernel/infrastructure/logging"
	"github.com/flowforge/kernel/kernel/ctx"
)

func TestSchedulerRunsRegisteredWorkflowOnEveryTick(t *testing.T) {
	var runs int32
	runner := stubRunner{fn: func(c context.Context, step Step) (interface{}, error) {
		atomic.AddInt32(&runs, 1)
		return "ok", nil
	}}
	engine := NewEngine(runner, ctx.NewMemoryStateAccess())
	sched := NewScheduler(engine, logging.New("scheduler-test", "error", "json"))

	steps := []Step{{ID: "s1", Name: "ticked", Kind: StepTool, ToolName: "t"}}
	_, err := sched.Register("@every 10ms", "wf-scheduled", steps)
	require.NoError(t, err)

	sched.Start()
	defer sched.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerRegisterRejectsInvalidSteps(t *testing.T) {
	engine := NewEngine(stubRunner{fn: func(c context.Context, step Step) (interface{}, error) { return nil, nil }}, nil)
	sched := NewScheduler(engine, nil)

	_, err := sched.Register("@every 1h", "wf-invalid", []Step{{ID: "s1", Name: ""}})
	assert.Error(t, err)
}

func TestSchedulerRegisterRejectsInvalidCronExpression(t *testing.T) {
	engine := NewEngine(stubRunner{fn: func(c context.Context, step Step) (interface{}, error) { return "ok", nil }}, nil)
	sched := NewScheduler(engine, nil)

	steps := []Step{{ID: "s1", Name: "ok", Kind: StepTool, ToolName: "t"}}
	_, err := sched.Register("not a cron expression", "wf-bad-cron", steps)
	assert.Error(t, err)
}

func TestSchedulerUnregisterRemovesEntry(t *testing.T) {
	engine := NewEngine(stubRunner{fn: func(c context.Context, step Step) (interface{}, error) { return "ok", nil }}, nil)
	sched := NewScheduler(engine, nil)

	steps := []Step{{ID: "s1", Name: "ok", Kind: StepTool, ToolName: "t"}}
	_, err := sched.Register("@every 1h", "wf-removable", steps)
	require.NoError(t, err)

	assert.True(t, sched.Unregister("wf-removable"))
	assert.False(t, sched.Unregister("wf-removable"))
}

func TestSchedulerRegisterReplacesExistingEntry(t *testing.T) {
	var runs int32
	runner := stubRunner{fn: func(c context.Context, step Step) (interface{}, error) {
		atomic.AddInt32(&runs, 1)
		return "ok", nil
	}}
	engine := NewEngine(runner, ctx.NewMemoryStateAccess())
	sched := NewScheduler(engine, nil)

	steps := []Step{{ID: "s1", Name: "ticked", Kind: StepTool, ToolName: "t"}}
	_, err := sched.Register("@every 1h", "wf-replace", steps)
	require.NoError(t, err)

	id2, err := sched.Register("@every 10ms", "wf-replace", steps)
	require.NoError(t, err)
	assert.NotZero(t, id2)

	sched.Start()
	defer sched.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 1
	}, time.Second, 5*time.Millisecond)

	sched.mu.Lock()
	entryCount := len(sched.entries)
	sched.mu.Unlock()
	assert.Equal(t, 1, entryCount)
}
