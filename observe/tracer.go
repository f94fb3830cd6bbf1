package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// SenderMeta describes a sender implementation for telemetry purposes.
type SenderMeta struct {
	ID       string // Fully qualified sender ID (channel.name or just name)
	Channel  string // Message channel, e.g. "email" or "sms" (may be empty)
	Name     string // Sender name (required)
	Provider string // Backing transport, e.g. "smtp" (optional)
	Version  string // Sender version (optional)
}

// Validate reports whether the metadata can identify a sender.
func (m SenderMeta) Validate() error {
	if m.Name == "" {
		return ErrMissingSenderName
	}
	return nil
}

// SpanName returns the deterministic span name for this sender.
// Format: notify.send.<channel>.<name> or notify.send.<name>
func (m SenderMeta) SpanName() string {
	if m.Channel != "" {
		return "notify.send." + m.Channel + "." + m.Name
	}
	return "notify.send." + m.Name
}

// SenderID returns the fully qualified sender identifier.
func (m SenderMeta) SenderID() string {
	if m.ID != "" {
		return m.ID
	}
	if m.Channel != "" {
		return m.Channel + "." + m.Name
	}
	return m.Name
}

func (m SenderMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("sender.id", m.SenderID()),
		attribute.String("sender.name", m.Name),
	}
	if m.Channel != "" {
		attrs = append(attrs, attribute.String("sender.channel", m.Channel))
	}
	if m.Provider != "" {
		attrs = append(attrs, attribute.String("sender.provider", m.Provider))
	}
	return attrs
}

func (m SenderMeta) logAttrs() []any {
	attrs := []any{
		slog.String("sender.id", m.SenderID()),
		slog.String("sender.name", m.Name),
	}
	if m.Channel != "" {
		attrs = append(attrs, slog.String("sender.channel", m.Channel))
	}
	if m.Provider != "" {
		attrs = append(attrs, slog.String("sender.provider", m.Provider))
	}
	if m.Version != "" {
		attrs = append(attrs, slog.String("sender.version", m.Version))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with sender-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a send attempt.
	StartSpan(ctx context.Context, meta SenderMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer on top of an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a client span with sender metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta SenderMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("sender.error", false))
	if meta.Version != "" {
		attrs = append(attrs, attribute.String("sender.version", meta.Version))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("sender.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a Tracer whose spans record nothing.
func NopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta SenderMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
