package extension

import (
	"context"
	"sync"

	"github.com/vango-dev/trackstate/pkg/state"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for trackstate stores.
const defaultTracerName = "trackstate"

// OTelConfig configures the OpenTelemetry extension.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "trackstate").
	TracerName string

	// TracerProvider supplies the tracer (default: the global provider).
	TracerProvider trace.TracerProvider

	// IncludeValues records written values as span attributes.
	// May contain sensitive information - disabled by default.
	IncludeValues bool

	// Filter determines which writes to trace.
	// Return true to trace the write, false to skip.
	// If nil, all writes are traced.
	Filter func(ev state.SetEvent) bool

	// AttributeExtractor extracts custom attributes from a write.
	AttributeExtractor func(ev state.SetEvent) []attribute.KeyValue

	// Context is the parent of spans started outside a batch
	// (default: context.Background()).
	Context context.Context

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry extension.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeValues enables recording written values in spans.
func WithIncludeValues(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeValues = include
	}
}

// WithWriteFilter sets a filter function for writes.
func WithWriteFilter(filter func(ev state.SetEvent) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(ev state.SetEvent) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// WithParentContext sets the parent context of spans started outside a batch.
func WithParentContext(ctx context.Context) OTelOption {
	return func(c *OTelConfig) {
		c.Context = ctx
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
		Context:    context.Background(),
	}
}

// TracingExtension traces store writes and batches.
type TracingExtension struct {
	config OTelConfig

	mu      sync.Mutex
	batches map[*state.Store]batchSpan
}

type batchSpan struct {
	ctx  context.Context
	span trace.Span
}

// OpenTelemetry creates an extension that traces every applied write.
//
// The extension:
//   - Creates a span for each write with the store ID, path, op and action
//   - Groups writes made inside a batch under one batch span
//   - Records the number of observers notified on the batch span
//
// Example:
//
//	s, _ := state.New(doc, state.WithExtensions(
//	    extension.OpenTelemetry(
//	        extension.WithTracerName("my-app"),
//	        extension.WithWriteFilter(func(ev state.SetEvent) bool {
//	            return !ev.Path.HasPrefix(state.P("cache"))
//	        }),
//	    ),
//	))
//
// The tracer uses the global OpenTelemetry tracer provider unless
// WithTracerProvider is given. Configure it in main():
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) *TracingExtension {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.TracerProvider != nil {
		config.tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		config.tracer = otel.Tracer(config.TracerName)
	}
	return &TracingExtension{
		config:  config,
		batches: make(map[*state.Store]batchSpan),
	}
}

// Name implements state.Extension.
func (t *TracingExtension) Name() string { return "opentelemetry" }

// OnSet implements state.SetHook.
func (t *TracingExtension) OnSet(ev state.SetEvent) {
	if t.config.Filter != nil && !t.config.Filter(ev) {
		return
	}

	op := opOf(ev)
	attrs := []attribute.KeyValue{
		attribute.String("trackstate.store_id", ev.Store.ID()),
		attribute.String("trackstate.path", ev.Path.String()),
		attribute.String("trackstate.op", op),
		attribute.String("trackstate.action", actionName(actionOf(ev))),
		attribute.Int64("trackstate.edition", ev.Store.Edition()),
	}
	if t.config.IncludeValues {
		attrs = append(attrs, attribute.String("trackstate.value", formatValue(ev.Value)))
	}
	if t.config.AttributeExtractor != nil {
		attrs = append(attrs, t.config.AttributeExtractor(ev)...)
	}

	_, span := t.config.tracer.Start(
		t.TraceContext(ev.Store),
		"trackstate."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	span.SetStatus(codes.Ok, "")
	span.End()
}

// OnBatchStart implements state.BatchHook.
func (t *TracingExtension) OnBatchStart(s *state.Store) {
	ctx, span := t.config.tracer.Start(
		t.config.Context,
		"trackstate.batch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("trackstate.store_id", s.ID())),
	)
	t.mu.Lock()
	t.batches[s] = batchSpan{ctx: ctx, span: span}
	t.mu.Unlock()
}

// OnNotify implements state.NotifyHook.
func (t *TracingExtension) OnNotify(ev state.NotifyEvent) {
	t.mu.Lock()
	b, ok := t.batches[ev.Store]
	t.mu.Unlock()
	if ok {
		b.span.SetAttributes(
			attribute.Int("trackstate.mutations", len(ev.Mutations)),
			attribute.Int("trackstate.observers_notified", ev.Observers),
		)
	}
}

// OnBatchFinish implements state.BatchHook.
func (t *TracingExtension) OnBatchFinish(s *state.Store) {
	t.mu.Lock()
	b, ok := t.batches[s]
	delete(t.batches, s)
	t.mu.Unlock()
	if ok {
		b.span.End()
	}
}

// OnDestroy implements state.DestroyHook. An open batch span is marked as
// failed; it still ends when the batch closes.
func (t *TracingExtension) OnDestroy(s *state.Store) {
	t.mu.Lock()
	b, ok := t.batches[s]
	t.mu.Unlock()
	if ok {
		b.span.SetStatus(codes.Error, "store destroyed inside batch")
	}
}

// TraceContext returns the context spans for s are started under: the open
// batch span if there is one, the configured parent context otherwise.
func (t *TracingExtension) TraceContext(s *state.Store) context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.batches[s]; ok {
		return b.ctx
	}
	return t.config.Context
}
