package hooks

import (
	"fmt"

	"github.com/dop251/goja"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
)

// JSHook compiles source into a goja program once and builds a Hook that
// runs it on every invocation. source must define a function named fnName
// taking (ctx) and returning either a string result kind ("continue",
// "modified", "replace", "cancel", "skipped") or an object
// {kind, value, reason, target}. Each Run call gets a fresh goja.Runtime:
// goja values aren't safe to share across concurrent hook executions.
func JSHook(meta Metadata, source, fnName string) (Hook, error) {
	meta.Language = LanguageJS
	program, err := goja.Compile(meta.Name, source, false)
	if err != nil {
		return Hook{}, kerrors.Wrap(kerrors.KindValidation, "compile JS hook source", err)
	}

	run := func(ctx *Context) (Result, error) {
		vm := goja.New()
		if _, err := vm.RunProgram(program); err != nil {
			return Result{}, kerrors.Wrap(kerrors.KindFatal, "run JS hook program", err)
		}

		fn, ok := goja.AssertFunction(vm.Get(fnName))
		if !ok {
			return Result{}, kerrors.Fatal(fmt.Sprintf("JS hook %q does not define function %q", meta.Name, fnName), nil)
		}

		jsCtx := vm.ToValue(map[string]interface{}{
			"point":          string(ctx.Point),
			"correlation_id": ctx.CorrelationID,
			"language":       string(ctx.Language),
			"data":           ctx.Data,
			"metadata":       ctx.Metadata,
		})
		ret, err := fn(goja.Undefined(), jsCtx)
		if err != nil {
			return Result{}, kerrors.Wrap(kerrors.KindFatal, fmt.Sprintf("JS hook %q threw", meta.Name), err)
		}
		return decodeJSResult(ret)
	}

	return Hook{Metadata: meta, Run: run}, nil
}

func decodeJSResult(v goja.Value) (Result, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return Continue(), nil
	}
	if s, ok := v.Export().(string); ok {
		return decodeJSResultKind(s, nil, "", "")
	}
	obj, ok := v.Export().(map[string]interface{})
	if !ok {
		return Result{}, kerrors.Validation("js_result", "hook must return a string kind or an object")
	}
	kind, _ := obj["kind"].(string)
	reason, _ := obj["reason"].(string)
	target, _ := obj["target"].(string)
	return decodeJSResultKind(kind, obj["value"], reason, target)
}

func decodeJSResultKind(kind string, value interface{}, reason, target string) (Result, error) {
	switch kind {
	case "", "continue":
		return Continue(), nil
	case "modified":
		return Modified(value), nil
	case "replace":
		return Replace(value), nil
	case "redirect":
		return Redirect(target), nil
	case "cancel":
		return Cancel(reason), nil
	case "skipped":
		return Skipped(reason), nil
	default:
		return Result{}, kerrors.Validation("js_result_kind", fmt.Sprintf("unknown JS hook result kind %q", kind))
	}
}
