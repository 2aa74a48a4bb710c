package hooks

import (
	"fmt"
	"sync"
	"time"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
)

// NetworkPriority orders distributed propagation urgency.
type NetworkPriority string

const (
	NetworkLow      NetworkPriority = "Low"
	NetworkNormal   NetworkPriority = "Normal"
	NetworkHigh     NetworkPriority = "High"
	NetworkCritical NetworkPriority = "Critical"
)

// RemoteAgentID identifies a hook participant elsewhere in the cluster.
// Hash/equality is defined over NodeID+AgentID only (network address and
// capabilities are informational).
type RemoteAgentID struct {
	NodeID         string
	AgentID        string
	NetworkAddress string
	Capabilities   map[string]string
}

// Key returns the hash/equality key for this agent id.
func (r RemoteAgentID) Key() string {
	return r.NodeID + "/" + r.AgentID
}

// PropagationFlags governs how a DistributedHookContext is fanned out.
type PropagationFlags struct {
	Broadcast         bool
	TargetAgents      []RemoteAgentID
	MaxHops           int
	CurrentHops       int
	AwaitRemote       bool
	RemoteTimeout     time.Duration
	ContinueOnFailure bool
	NetworkPriority   NetworkPriority
}

// ShouldPropagate reports whether the context may still be propagated
// further (I3: current_hops <= max_hops, equality disallows another hop).
func (f PropagationFlags) ShouldPropagate() bool {
	return f.CurrentHops < f.MaxHops
}

// SecurityContext authenticates and authorizes a distributed hook dispatch.
type SecurityContext struct {
	AuthToken         string
	Signature         []byte
	TrustedAgents     []string
	AllowedHookPoints []HookPoint
	AllowedIPs        []string
	Timestamp         time.Time
	Nonce             string
}

// withinMaxAge reports whether the security context's timestamp is still
// fresh enough to resist replay.
func (s SecurityContext) withinMaxAge(maxAge time.Duration) bool {
	return time.Since(s.Timestamp) <= maxAge
}

func (s SecurityContext) allows(hookPoint HookPoint) bool {
	if len(s.AllowedHookPoints) == 0 {
		return true
	}
	for _, p := range s.AllowedHookPoints {
		if p == hookPoint {
			return true
		}
	}
	return false
}

func (s SecurityContext) trusts(agentKey string) bool {
	if len(s.TrustedAgents) == 0 {
		return true
	}
	for _, a := range s.TrustedAgents {
		if a == agentKey {
			return true
		}
	}
	return false
}

func (s SecurityContext) allowsIP(ip string) bool {
	if ip == "" || len(s.AllowedIPs) == 0 {
		return true
	}
	for _, allowed := range s.AllowedIPs {
		if allowed == ip {
			return true
		}
	}
	return false
}

// RemoteExecutionResult is what a target records after locally executing a
// propagated hook.
type RemoteExecutionResult struct {
	Success    bool
	ResultData interface{}
	Error      string
	Duration   time.Duration
	Timestamp  time.Time
}

// DistributedContext extends Context with cross-agent propagation state.
type DistributedContext struct {
	Context

	SourceAgent          *RemoteAgentID
	TargetAgents         []RemoteAgentID
	PropagationFlags     PropagationFlags
	Security             SecurityContext
	NetworkCorrelationID string

	mu            sync.RWMutex
	remoteResults map[string]RemoteExecutionResult // keyed by RemoteAgentID.Key()
}

// NewDistributedContext wraps a base Context for cluster propagation.
func NewDistributedContext(base Context, flags PropagationFlags, sec SecurityContext, networkCorrelationID string) *DistributedContext {
	return &DistributedContext{
		Context:              base,
		PropagationFlags:     flags,
		Security:             sec,
		NetworkCorrelationID: networkCorrelationID,
		remoteResults:        make(map[string]RemoteExecutionResult),
	}
}

// Transport sends a serialized distributed context to a single remote agent
// and returns its execution result. Implementations are injected; the
// distributed layer treats transport as best-effort.
type Transport interface {
	Send(agent RemoteAgentID, payload []byte, timeout time.Duration) (RemoteExecutionResult, error)
}

const defaultMaxSecurityAge = 5 * time.Minute

// Dispatch validates the security context and sends the payload to every
// agent in TargetAgents, recording results by agent key. The Broadcast flag
// is not consulted.
func (d *DistributedContext) Dispatch(transport Transport, serialize func(*DistributedContext) ([]byte, error)) error {
	if err := d.Security.Verify(); err != nil {
		return err
	}
	if !d.Security.withinMaxAge(defaultMaxSecurityAge) {
		return kerrors.Validation("timestamp", "security context timestamp too old")
	}
	if !d.Security.allows(d.Point) {
		return kerrors.Fatal("hook point not permitted by security context", nil)
	}

	targets := d.TargetAgents
	payload, err := serialize(d)
	if err != nil {
		return kerrors.Wrap(kerrors.KindValidation, "failed to serialize distributed context", err)
	}

	var firstErr error
	for _, target := range targets {
		if !d.Security.trusts(target.Key()) {
			return kerrors.Fatal(fmt.Sprintf("agent %s not trusted", target.Key()), nil)
		}

		result, sendErr := transport.Send(target, payload, d.PropagationFlags.RemoteTimeout)
		if sendErr != nil {
			if !d.PropagationFlags.ContinueOnFailure {
				return kerrors.Transient("dispatch", sendErr)
			}
			if firstErr == nil {
				firstErr = sendErr
			}
			continue
		}
		d.recordResult(target, result)
	}
	return nil
}

func (d *DistributedContext) recordResult(agent RemoteAgentID, result RemoteExecutionResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remoteResults[agent.Key()] = result
}

// CreatePropagatedContext clones the context with CurrentHops incremented
// and remote_results cleared, ready for the next hop.
func (d *DistributedContext) CreatePropagatedContext() (*DistributedContext, error) {
	if !d.PropagationFlags.ShouldPropagate() {
		return nil, kerrors.Validation("current_hops", "max_hops reached, cannot propagate further")
	}
	clone := *d
	clone.PropagationFlags.CurrentHops++
	clone.remoteResults = make(map[string]RemoteExecutionResult)
	inner := d.Context.Clone()
	clone.Context = *inner
	return &clone, nil
}

// SuccessfulRemoteResults returns only the results that succeeded.
func (d *DistributedContext) SuccessfulRemoteResults() map[string]RemoteExecutionResult {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]RemoteExecutionResult)
	for k, v := range d.remoteResults {
		if v.Success {
			out[k] = v
		}
	}
	return out
}

// AllRemoteSucceeded reports whether every recorded remote result succeeded.
// A context with no recorded results is vacuously true.
func (d *DistributedContext) AllRemoteSucceeded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, v := range d.remoteResults {
		if !v.Success {
			return false
		}
	}
	return true
}
