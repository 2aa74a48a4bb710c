// Package workflow implements the deterministic step executor family
// (sequential being the core member), typed steps, retry policy, timeout
// enforcement, and the state-key conventions that bridge workflow output
// into the shared state store (C10-C12).
package workflow

import (
	"time"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
)

// StepKind discriminates the WorkflowStep sum type.
type StepKind int

const (
	StepTool StepKind = iota
	StepAgent
	StepCustom
)

// RetryPolicy governs a step's retry behavior.
type RetryPolicy struct {
	MaxAttempts       int
	RetryDelayMS      int64
	ExponentialBackoff bool
}

// Step is a single typed unit of work within a workflow.
type Step struct {
	ID         string
	Name       string
	Kind       StepKind
	ToolName   string
	ToolParams map[string]interface{}
	AgentInput string
	AgentConfig map[string]interface{}
	FunctionName string
	CustomParams map[string]interface{}
	Timeout    time.Duration
	Retry      *RetryPolicy
}

// Validate enforces the per-variant required fields from §4.5 step 1.
func (s Step) Validate() error {
	if s.Name == "" {
		return kerrors.Validation("name", "step name must not be empty")
	}
	switch s.Kind {
	case StepTool:
		if s.ToolName == "" {
			return kerrors.Validation("tool_name", "tool step requires tool_name")
		}
	case StepAgent:
		if s.AgentInput == "" {
			return kerrors.Validation("input", "agent step requires input")
		}
	case StepCustom:
		if s.FunctionName == "" {
			return kerrors.Validation("function_name", "custom step requires function_name")
		}
	}
	return nil
}

// Status is the workflow execution status persisted to storage.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// State is the C10 in-memory WorkflowState.
type State struct {
	ExecutionID string
	CurrentStep int
	Status      Status
	SharedData  map[string]interface{}
	StepOutputs map[string]interface{} // keyed by step id
	StartTime   *time.Time
	LastUpdate  time.Time
	FinalOutput interface{}
	Error       string
}

// NewState starts a fresh WorkflowState for a new run.
func NewState(executionID string) *State {
	return &State{
		ExecutionID: executionID,
		Status:      StatusPending,
		SharedData:  make(map[string]interface{}),
		StepOutputs: make(map[string]interface{}),
		LastUpdate:  time.Now(),
	}
}

// advanceTo sets CurrentStep, enforcing I6: non-decreasing across a run.
func (s *State) advanceTo(step int) {
	if step > s.CurrentStep {
		s.CurrentStep = step
	}
	s.LastUpdate = time.Now()
}

// StepResult is the outcome of running a single step.
type StepResult struct {
	StepID     string
	Success    bool
	Output     interface{}
	Error      string
	Duration   time.Duration
	RetryCount int
}

// ErrorStrategy tells the engine how to react to a failed step.
type ErrorStrategy string

const (
	FailFast ErrorStrategy = "FailFast"
	Continue ErrorStrategy = "Continue"
	Retry    ErrorStrategy = "Retry"
)
