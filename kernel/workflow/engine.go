package workflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
	"github.com/flowforge/kernel/kernel/ctx"
	"github.com/flowforge/kernel/pkg/tracing"
)

// Engine is the C12 sequential workflow engine; it is the only engine
// variant in this package.
type Engine struct {
	Runner             StepRunner
	State              ctx.StateAccess
	DefaultStepTimeout time.Duration
	MaxExecutionTime   time.Duration
	ErrorStrategy      ErrorStrategy
	Tracer             *tracing.Tracer // optional; nil means spans are skipped
}

// NewEngine builds a sequential engine with the given dependencies and
// sensible default timeouts.
func NewEngine(runner StepRunner, state ctx.StateAccess) *Engine {
	return &Engine{
		Runner:             runner,
		State:              state,
		DefaultStepTimeout: 30 * time.Second,
		MaxExecutionTime:   5 * time.Minute,
		ErrorStrategy:      FailFast,
	}
}

// Validate rejects an empty workflow, or a workflow containing any step
// that fails its own Validate (empty name/tool_name/input/function_name per
// variant). Every invalid step is reported at once via a multierror rather
// than stopping at the first one, so a caller fixing up a workflow
// definition sees every problem in a single round trip.
func Validate(steps []Step) error {
	if len(steps) == 0 {
		return kerrors.Validation("steps", "workflow must have at least one step")
	}
	var result *multierror.Error
	for _, s := range steps {
		if err := s.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Execute runs steps in order against a fresh WorkflowState, persisting
// each step's output under the C10 state-key conventions as it goes.
func (e *Engine) Execute(parent context.Context, execCtx *ctx.ExecutionContext, workflowID string, steps []Step) ([]StepResult, *State, error) {
	if err := Validate(steps); err != nil {
		return nil, nil, err
	}

	state := NewState(workflowID)
	now := time.Now()
	state.StartTime = &now
	state.Status = StatusRunning

	deadline := parent
	var cancel context.CancelFunc
	if e.MaxExecutionTime > 0 {
		deadline, cancel = context.WithTimeout(parent, e.MaxExecutionTime)
		defer cancel()
	}

	results := make([]StepResult, 0, len(steps))
	var stepErrs *multierror.Error

	for i, step := range steps {
		if deadline.Err() == context.DeadlineExceeded {
			return e.completeExecution(deadline, execCtx, workflowID, state, results, false, kerrors.Timeout(workflowID))
		}

		state.advanceTo(i)

		stepExecCtx := StepExecutionContext{
			WorkflowID: workflowID,
			Step:       step,
			State:      state,
			Parent:     execCtx,
		}.ToExecutionContext()

		stepCtx, endSpan := e.startStepSpan(deadline, workflowID, step)
		result := ExecuteStepWithRetry(stepCtx, e.Runner, step, stepExecCtx, e.DefaultStepTimeout)
		endSpan(result)
		results = append(results, result)

		if result.Success {
			state.StepOutputs[step.ID] = result.Output
			if e.State != nil {
				_ = e.State.Store(deadline, execCtx.Scope, StepOutputKey(workflowID, step.Name), result.Output)
			}
			continue
		}

		switch e.ErrorStrategy {
		case FailFast:
			return e.completeExecution(deadline, execCtx, workflowID, state, results, false, kerrors.Wrap(kerrors.KindFatal, "step failed", nil))
		case Continue:
			stepErrs = multierror.Append(stepErrs, fmt.Errorf("step %q failed: %s", step.Name, result.Error))
			continue
		case Retry:
			// ExecuteStepWithRetry already exhausted the step's own retry
			// policy; under the Retry strategy the engine simply advances.
			continue
		}
	}

	if err := stepErrs.ErrorOrNil(); err != nil {
		return e.completeExecution(deadline, execCtx, workflowID, state, results, false, err)
	}
	return e.completeExecution(deadline, execCtx, workflowID, state, results, true, nil)
}

// startStepSpan opens a tracing span for step when e.Tracer is configured;
// the returned function ends it, recording result.Error as a span error.
func (e *Engine) startStepSpan(parent context.Context, workflowID string, step Step) (context.Context, func(StepResult)) {
	if e.Tracer == nil {
		return parent, func(StepResult) {}
	}
	spanCtx, end := e.Tracer.StartSpan(parent, "workflow.step", map[string]string{
		"workflow_id": workflowID,
		"step_id":     step.ID,
		"step_name":   step.Name,
		"step_kind":   strconv.Itoa(int(step.Kind)),
	})
	return spanCtx, func(result StepResult) {
		if result.Success {
			end(nil)
			return
		}
		end(fmt.Errorf("%s", result.Error))
	}
}

func (e *Engine) completeExecution(ctxParent context.Context, execCtx *ctx.ExecutionContext, workflowID string, state *State, results []StepResult, success bool, failureErr error) ([]StepResult, *State, error) {
	if success {
		state.Status = StatusCompleted
	} else {
		state.Status = StatusFailed
		if failureErr != nil {
			state.Error = failureErr.Error()
		}
	}
	state.LastUpdate = time.Now()

	var finalOutput interface{}
	if len(results) > 0 {
		finalOutput = results[len(results)-1].Output
	}
	state.FinalOutput = finalOutput

	if e.State != nil {
		_ = e.State.Store(ctxParent, execCtx.Scope, FinalOutputKey(workflowID), finalOutput)
		_ = e.State.Store(ctxParent, execCtx.Scope, StateKey(workflowID), state.Status)
		if !success {
			_ = e.State.Store(ctxParent, execCtx.Scope, ErrorKey(workflowID), state.Error)
		}
	}

	if !success && failureErr != nil {
		return results, state, failureErr
	}
	return results, state, nil
}
