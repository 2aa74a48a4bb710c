package hooks

import (
	"context"
	"sync"
	"time"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
	"github.com/flowforge/kernel/infrastructure/logging"
	"github.com/flowforge/kernel/infrastructure/resilience"
)

// Outcome is the terminal result the executor reports back to the caller
// after walking a point's hook list and applying result fusion.
type Outcome struct {
	Context  *Context
	Redirect string
	Canceled bool
	Reason   string
}

// Executor is the C4 Hook Executor: it runs a point's registered hooks in
// order under a per-point circuit breaker and fuses their results.
type Executor struct {
	registry   *Registry
	log        *logging.Logger
	breakersMu sync.Mutex
	breakers   map[HookPoint]*resilience.CircuitBreaker
	cbConfig   resilience.Config
}

// NewExecutor builds an Executor over registry. Every hook point gets its
// own circuit breaker, lazily created with cbConfig.
func NewExecutor(registry *Registry, log *logging.Logger, cbConfig resilience.Config) *Executor {
	return &Executor{
		registry: registry,
		log:      log,
		breakers: make(map[HookPoint]*resilience.CircuitBreaker),
		cbConfig: cbConfig,
	}
}

// breakerFor returns the circuit breaker for point, creating it on first
// use. Concurrent Execute calls for a previously-unseen point race on this
// path, so the cache is guarded rather than left to plain map access.
func (x *Executor) breakerFor(point HookPoint) *resilience.CircuitBreaker {
	x.breakersMu.Lock()
	defer x.breakersMu.Unlock()

	if cb, ok := x.breakers[point]; ok {
		return cb
	}
	cb := resilience.New(x.cbConfig)
	x.breakers[point] = cb
	return cb
}

// Execute runs every enabled hook registered at hctx.Point, in priority
// order, fusing their results per §4.2.
func (x *Executor) Execute(parent context.Context, hctx *Context) (*Outcome, error) {
	cb := x.breakerFor(hctx.Point)
	working := hctx.Clone()

	hookList := x.registry.GetHooks(hctx.Point)
	for _, hook := range hookList {
		result, err := x.invokeWithRetry(parent, cb, hook, working)
		if err != nil {
			// The breaker rejected the call or the hook itself errored; the
			// caller decides whether that's fatal (workflow ErrorStrategy,
			// propagation_flags.continue_on_failure, ...).
			return nil, err
		}

		switch result.Kind {
		case ResultContinue:
			continue
		case ResultModified:
			mergeInto(working, result.Value)
		case ResultReplace:
			// Replace halts further hooks at this point (Open Question 3):
			// later hooks would otherwise observe a context they didn't
			// expect to be rewritten out from under them.
			replaceInto(working, result.Value)
			return &Outcome{Context: working}, nil
		case ResultRedirect:
			return &Outcome{Context: working, Redirect: result.Target}, nil
		case ResultCancel:
			return &Outcome{Context: working, Canceled: true, Reason: result.Reason}, nil
		case ResultSkipped:
			continue
		case ResultRetry:
			// invokeWithRetry already exhausted the per-hook retry budget;
			// reaching ResultRetry here means attempts were capped without
			// a terminal result, which we surface as a timeout.
			return nil, kerrors.Timeout(hook.Metadata.Name)
		}
	}

	return &Outcome{Context: working}, nil
}

// invokeWithRetry runs a single hook under the circuit breaker, honoring a
// Retry result by re-invoking the same hook after its requested delay, up to
// its own MaxAttempts (retries are per-hook, not per-point).
func (x *Executor) invokeWithRetry(parent context.Context, cb *resilience.CircuitBreaker, hook Hook, working *Context) (Result, error) {
	var result Result
	attempts := 0

	for {
		attempts++
		start := time.Now()
		var runErr error
		execErr := cb.Execute(parent, func() error {
			result, runErr = hook.Run(working)
			return runErr
		})

		duration := time.Since(start)
		if x.log != nil {
			x.log.LogHookExecution(parent, string(working.Point), hook.Metadata.Name, duration, runErr)
		}

		if execErr != nil {
			if execErr == resilience.ErrCircuitOpen || execErr == resilience.ErrTooManyRequests {
				return Result{}, kerrors.CircuitOpen(string(working.Point))
			}
			return Result{}, kerrors.Transient(hook.Metadata.Name, execErr)
		}

		if result.Kind != ResultRetry {
			return result, nil
		}
		if result.MaxAttempts > 0 && attempts >= result.MaxAttempts {
			return result, nil
		}

		select {
		case <-parent.Done():
			return Result{}, kerrors.Timeout(hook.Metadata.Name)
		case <-time.After(time.Duration(result.RetryDelayMS) * time.Millisecond):
		}
	}
}

func mergeInto(ctx *Context, v interface{}) {
	if m, ok := v.(map[string]interface{}); ok {
		for k, val := range m {
			ctx.Data[k] = val
		}
		return
	}
	ctx.Data["_value"] = v
}

func replaceInto(ctx *Context, v interface{}) {
	if m, ok := v.(map[string]interface{}); ok {
		ctx.Data = m
		return
	}
	ctx.Data = map[string]interface{}{"_value": v}
}
