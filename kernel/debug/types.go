// Package debug implements the C17 Debug State Cache: a script-agnostic
// debug state store shared across language adapters, with an atomic fast
// path for the hot "are we even debugging" checks and lock-protected
// slow-path structures for breakpoints, variables, and watch expressions.
package debug

import "time"

// Mode is the execution's current debug mode.
type Mode int

const (
	ModeDisabled Mode = iota
	ModeMinimal       // carries no check interval; Mode is a plain enum
	ModeFull
)

// StepMode describes an in-progress step operation.
type StepMode struct {
	Kind        StepKind
	Depth       int // StepIn target
	TargetDepth int // StepOver / StepOut target
}

type StepKind int

const (
	StepNone StepKind = iota
	StepIn
	StepOver
	StepOut
)

// Location identifies a source line.
type Location struct {
	Source string
	Line   uint32
}

// CachedVariable is a single variable-cache entry (I10: stale once its
// Generation no longer matches the cache's current generation).
type CachedVariable struct {
	Name       string
	Value      interface{}
	Generation uint64
	LastAccess time.Time
}

// hotLocation records a recently-hit source line for performance
// monitoring.
type hotLocation struct {
	Source string
	Line   uint32
	At     time.Time
}
