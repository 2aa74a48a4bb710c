package workflow

import (
	"context"
	"time"

	"github.com/flowforge/kernel/kernel/ctx"
)

// StepRunner executes a single step's concrete action (tool invocation,
// agent call, custom function) and produces its output. Implementations are
// injected by the host embedding the runtime.
type StepRunner interface {
	Run(ctx context.Context, step Step, execCtx *ctx.ExecutionContext) (interface{}, error)
}

// StepExecutionContext is the bridge between a running WorkflowState and the
// per-step ExecutionContext a runner operates under.
type StepExecutionContext struct {
	WorkflowID    string
	Step          Step
	State         *State
	RetryAttempt  int
	IsFinalRetry  bool
	Parent        *ctx.ExecutionContext
	Inheritance   ctx.InheritancePolicy
}

// ToExecutionContext implements §4.5's ExecutionContext bridging: scope
// Workflow(execution_id), shared data copied, workflow_id/current_step/
// retry_attempt/is_final_retry injected, and each step output projected as
// its own data key.
func (s StepExecutionContext) ToExecutionContext() *ctx.ExecutionContext {
	policy := s.Inheritance
	if policy == "" {
		policy = ctx.Inherit
	}
	child := s.Parent.CreateChild(ctx.Workflow(s.WorkflowID), policy)

	for k, v := range s.State.SharedData {
		child.Set(k, v)
	}
	child.Set("workflow_id", s.WorkflowID)
	child.Set("current_step", s.State.CurrentStep)
	child.Set("retry_attempt", s.RetryAttempt)
	child.Set("is_final_retry", s.IsFinalRetry)
	for stepID, output := range s.State.StepOutputs {
		child.Set("step_output:"+stepID, output)
	}
	return child
}

// ExecuteStepWithRetry runs step under its retry policy and timeout per
// §4.5: exponential backoff (retry_delay_ms × 2^n) when configured, a
// per-step timeout falling back to defaultStepTimeout, and a per-step
// cumulative retry_count in the returned StepResult.
func ExecuteStepWithRetry(parent context.Context, runner StepRunner, step Step, execCtx *ctx.ExecutionContext, defaultStepTimeout time.Duration) StepResult {
	policy := RetryPolicy{MaxAttempts: 1}
	if step.Retry != nil {
		policy = *step.Retry
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}

	start := time.Now()
	var lastErr error
	retryCount := 0

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			retryCount++
			delay := time.Duration(policy.RetryDelayMS) * time.Millisecond
			if policy.ExponentialBackoff {
				delay = time.Duration(policy.RetryDelayMS) * time.Millisecond * time.Duration(1<<uint(attempt))
			}
			select {
			case <-parent.Done():
				return StepResult{StepID: step.ID, Success: false, Error: "cancelled", Duration: time.Since(start), RetryCount: retryCount}
			case <-time.After(delay):
			}
		}

		stepCtx, cancel := context.WithTimeout(parent, timeout)
		output, err := runner.Run(stepCtx, step, execCtx)
		cancel()

		if stepCtx.Err() == context.DeadlineExceeded {
			lastErr = context.DeadlineExceeded
			continue
		}
		if err == nil {
			return StepResult{
				StepID:     step.ID,
				Success:    true,
				Output:     output,
				Duration:   time.Since(start),
				RetryCount: retryCount,
			}
		}
		lastErr = err
	}

	errMsg := "step failed"
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	return StepResult{
		StepID:     step.ID,
		Success:    false,
		Error:      errMsg,
		Duration:   time.Since(start),
		RetryCount: retryCount,
	}
}
