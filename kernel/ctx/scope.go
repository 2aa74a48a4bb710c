// Package ctx implements the hierarchical execution context (C6), its
// scope-keyed shared memory (C7), and the state-access abstraction (C8)
// that every component reads and writes through.
package ctx

import "fmt"

// ScopeTag discriminates the Scope sum type.
type ScopeTag string

const (
	ScopeGlobal   ScopeTag = "global"
	ScopeSession  ScopeTag = "session"
	ScopeWorkflow ScopeTag = "workflow"
	ScopeAgent    ScopeTag = "agent"
	ScopeUser     ScopeTag = "user"
	ScopeTool     ScopeTag = "tool"
	ScopeHook     ScopeTag = "hook"
	ScopeCustom   ScopeTag = "custom"
)

// Scope is the granularity at which context data lives.
type Scope struct {
	Tag   ScopeTag
	Value string // id for Session/Workflow/Agent/User/Tool/Hook; free text for Custom; empty for Global
}

// Global is the root scope.
var Global = Scope{Tag: ScopeGlobal}

func Session(id string) Scope  { return Scope{Tag: ScopeSession, Value: id} }
func Workflow(id string) Scope { return Scope{Tag: ScopeWorkflow, Value: id} }
func Agent(id string) Scope    { return Scope{Tag: ScopeAgent, Value: id} }
func User(id string) Scope     { return Scope{Tag: ScopeUser, Value: id} }
func Tool(id string) Scope     { return Scope{Tag: ScopeTool, Value: id} }
func Hook(id string) Scope     { return Scope{Tag: ScopeHook, Value: id} }
func Custom(value string) Scope { return Scope{Tag: ScopeCustom, Value: value} }

// String renders "tag:value", matching the spec's Display contract. Global
// has no value and renders as just "global".
func (s Scope) String() string {
	if s.Tag == ScopeGlobal {
		return string(ScopeGlobal)
	}
	return fmt.Sprintf("%s:%s", s.Tag, s.Value)
}

// TenantScope builds the Custom scope every tenant-isolated vector entry
// must carry per I7: Custom("tenant:"+tenantID).
func TenantScope(tenantID string) Scope {
	return Custom("tenant:" + tenantID)
}

// InheritancePolicy decides what data a child context carries from its
// parent.
type InheritancePolicy string

const (
	Inherit InheritancePolicy = "Inherit"
	Isolate InheritancePolicy = "Isolate"
	Copy    InheritancePolicy = "Copy"
	Share   InheritancePolicy = "Share"
)
