// Package tracing adapts OpenTelemetry spans to the single StartSpan shape
// the kernel's step/hook executors need: wrap a unit of work, record its
// error if any, end the span.
package tracing

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/resource"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer with the kernel's span-scope helper.
type Tracer struct {
	tracer oteltrace.Tracer
}

// NewTracer builds a Tracer from a provider and instrumentation name,
// falling back to the global provider when provider is nil.
func NewTracer(provider oteltrace.TracerProvider, instrumentation string) *Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	if strings.TrimSpace(instrumentation) == "" {
		instrumentation = "kernel"
	}
	return &Tracer{tracer: provider.Tracer(instrumentation)}
}

// StartSpan opens a span named name with attrs attached, returning the
// span-carrying context and a function that ends the span, recording err
// (if non-nil) as a span error first.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func(error)) {
	if t == nil || t.tracer == nil {
		return ctx, func(error) {}
	}
	spanCtx, span := t.tracer.Start(ctx, name, oteltrace.WithAttributes(convertAttrs(attrs)...))
	return spanCtx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func convertAttrs(attrs map[string]string) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		if key := strings.TrimSpace(k); key != "" {
			out = append(out, attribute.String(key, v))
		}
	}
	return out
}

// NewTracerProvider builds an in-process SDK tracer provider tagged with
// serviceName. It has no exporter attached: spans are created and sampled
// but not shipped anywhere, which is enough for local span/attribute
// assertions in tests and for a host process to attach its own span
// processor later via provider.RegisterSpanProcessor.
func NewTracerProvider(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = "kerneld"
	}
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(sdktrace.WithResource(res)), nil
}
