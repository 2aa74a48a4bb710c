// Package hooks implements the priority-ordered, language-tagged hook
// registry and executor that every component's pre/post lifecycle points
// run through.
package hooks

import "fmt"

// HookPoint names a fixed program location at which hooks run. The set is
// closed; adding a new location is a code change, not configuration.
type HookPoint string

const (
	BeforeAgentExecution HookPoint = "BeforeAgentExecution"
	AfterAgentExecution  HookPoint = "AfterAgentExecution"
	BeforeToolExecution  HookPoint = "BeforeToolExecution"
	AfterToolExecution   HookPoint = "AfterToolExecution"
	BeforeWorkflowStart  HookPoint = "BeforeWorkflowStart"
	AfterWorkflowEnd     HookPoint = "AfterWorkflowEnd"
	WorkflowStepStarted  HookPoint = "WorkflowStepStarted"
	WorkflowStepComplete HookPoint = "WorkflowStepComplete"
	WorkflowError        HookPoint = "WorkflowError"
	SessionStart         HookPoint = "SessionStart"
	SessionEnd           HookPoint = "SessionEnd"
	SessionCheckpoint    HookPoint = "SessionCheckpoint"
	SessionRestore       HookPoint = "SessionRestore"
	SessionSave          HookPoint = "SessionSave"
	SystemStartup        HookPoint = "SystemStartup"
	SystemShutdown       HookPoint = "SystemShutdown"
)

// Priority is a total-ordered hook priority. Lower values execute earlier.
type Priority int

const (
	HIGHEST Priority = -200
	HIGH    Priority = -100
	NORMAL  Priority = 0
	LOW     Priority = 100
	LOWEST  Priority = 200
)

// Compare implements the C1 Priority Comparator: a total order over
// priorities, lower value sorts first.
func (p Priority) Compare(other Priority) int {
	switch {
	case p < other:
		return -1
	case p > other:
		return 1
	default:
		return 0
	}
}

// Language tags the runtime that authored a hook.
type Language string

const (
	LanguageNative Language = "native"
	LanguageLua    Language = "lua"
	LanguageJS     Language = "js"
	LanguagePython Language = "python"
)

// Metadata describes a registered hook.
type Metadata struct {
	Name        string
	Version     string
	Description string
	Tags        []string
	Priority    Priority
	Language    Language
}

// ComponentID identifies the component a hook context originates from.
type ComponentID struct {
	Type string
	Name string
}

// Context is the value passed to a hook invocation.
type Context struct {
	Point         HookPoint
	ComponentID   ComponentID
	CorrelationID string
	Language      Language
	Data          map[string]interface{}
	Metadata      map[string]string
}

// Clone returns a deep-enough copy of the context suitable for mutation by a
// single hook without affecting sibling hooks' view prior to fusion.
func (c *Context) Clone() *Context {
	data := make(map[string]interface{}, len(c.Data))
	for k, v := range c.Data {
		data[k] = v
	}
	meta := make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		meta[k] = v
	}
	return &Context{
		Point:         c.Point,
		ComponentID:   c.ComponentID,
		CorrelationID: c.CorrelationID,
		Language:      c.Language,
		Data:          data,
		Metadata:      meta,
	}
}

// ResultKind discriminates the sum type returned by a hook invocation.
type ResultKind int

const (
	ResultContinue ResultKind = iota
	ResultModified
	ResultReplace
	ResultRedirect
	ResultCancel
	ResultSkipped
	ResultRetry
)

func (k ResultKind) String() string {
	switch k {
	case ResultContinue:
		return "Continue"
	case ResultModified:
		return "Modified"
	case ResultReplace:
		return "Replace"
	case ResultRedirect:
		return "Redirect"
	case ResultCancel:
		return "Cancel"
	case ResultSkipped:
		return "Skipped"
	case ResultRetry:
		return "Retry"
	default:
		return "Unknown"
	}
}

// Result is the value a hook returns.
type Result struct {
	Kind        ResultKind
	Value       interface{} // Modified / Replace payload
	Target      string      // Redirect target
	Reason      string      // Cancel / Skipped reason
	RetryDelayMS int64      // Retry delay in milliseconds
	MaxAttempts int         // Retry cap
}

// Continue builds a ResultContinue.
func Continue() Result { return Result{Kind: ResultContinue} }

// Modified builds a ResultModified carrying the updated value.
func Modified(v interface{}) Result { return Result{Kind: ResultModified, Value: v} }

// Replace builds a ResultReplace carrying the replacement value.
func Replace(v interface{}) Result { return Result{Kind: ResultReplace, Value: v} }

// Redirect builds a ResultRedirect to the named target.
func Redirect(target string) Result { return Result{Kind: ResultRedirect, Target: target} }

// Cancel builds a ResultCancel with a human-readable reason.
func Cancel(reason string) Result { return Result{Kind: ResultCancel, Reason: reason} }

// Skipped builds a ResultSkipped with a human-readable reason.
func Skipped(reason string) Result { return Result{Kind: ResultSkipped, Reason: reason} }

// RetryResult builds a ResultRetry with the given delay and attempt cap.
func RetryResult(delayMS int64, maxAttempts int) Result {
	return Result{Kind: ResultRetry, RetryDelayMS: delayMS, MaxAttempts: maxAttempts}
}

// Func is the executable body of a Hook.
type Func func(ctx *Context) (Result, error)

// Hook carries metadata and an executable body, registered under one or more
// HookPoints.
type Hook struct {
	Metadata Metadata
	Run      Func
}

// Replayable is a Hook that additionally guarantees a deterministic
// serialize/deserialize round trip of its context and exposes a stable
// replay id.
type Replayable interface {
	ReplayID() string
	SerializeContext(ctx *Context) ([]byte, error)
	DeserializeContext(data []byte) (*Context, error)
}

// ReplayID computes the canonical "{name}:{version}" replay identifier
// shared by every Replayable implementation in this module.
func ReplayID(name, version string) string {
	return fmt.Sprintf("%s:%s", name, version)
}
