// Package otel bridges the audit Sink to OpenTelemetry tracing so duel runs,
// raw log traffic, and step updates show up in any OTel-compatible backend.
package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/agentduel/agentduel/observe"
)

const instrumentationName = "github.com/agentduel/agentduel"

// Sink implements observe.Sink by emitting OpenTelemetry spans.
type Sink struct {
	tracer trace.Tracer
}

// NewSink creates an OTel sink using the given TracerProvider.
// If tp is nil, a noop tracer provider is used.
func NewSink(tp trace.TracerProvider) *Sink {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Sink{
		tracer: tp.Tracer(instrumentationName),
	}
}

// Emit converts an audit event into an OTel span.
func (s *Sink) Emit(_ context.Context, event observe.Event) error {
	event.Normalize()

	_, span := s.tracer.Start(context.Background(), spanNameFor(event), trace.WithTimestamp(event.Timestamp))

	attrs := []attribute.KeyValue{
		attribute.String("duel.event.kind", string(event.Kind)),
	}
	if event.RunID != "" {
		attrs = append(attrs, attribute.String("duel.run.id", event.RunID))
	}
	if event.SessionID != "" {
		attrs = append(attrs, attribute.String("duel.session.id", event.SessionID))
	}
	if event.Provider != "" {
		attrs = append(attrs, attribute.String("duel.provider", event.Provider))
	}
	if event.Name != "" {
		attrs = append(attrs, attribute.String("duel.event.name", event.Name))
	}
	if event.Category != "" {
		attrs = append(attrs, attribute.String("duel.log.category", event.Category))
	}
	if event.StepNumber > 0 {
		attrs = append(attrs, attribute.Int("duel.step.number", event.StepNumber))
	}
	if event.ToolName != "" {
		attrs = append(attrs, attribute.String("duel.tool.name", event.ToolName))
	}
	if event.Status != "" {
		attrs = append(attrs, attribute.String("duel.status", string(event.Status)))
	}
	if event.Message != "" {
		attrs = append(attrs, attribute.String("duel.message", truncate(event.Message, 1024)))
	}
	for k, v := range event.Attributes {
		attrs = append(attrs, attribute.String("duel.attr."+k, fmt.Sprintf("%v", v)))
	}
	span.SetAttributes(attrs...)

	if event.Status == observe.StatusFailed {
		span.SetStatus(codes.Error, event.Error)
		if event.Error != "" {
			span.RecordError(fmt.Errorf("%s", event.Error))
		}
	} else if event.Status == observe.StatusCompleted {
		span.SetStatus(codes.Ok, "")
	}

	span.End(trace.WithTimestamp(event.Timestamp))
	return nil
}

func spanNameFor(event observe.Event) string {
	switch event.Kind {
	case observe.KindRun:
		return "duel.run"
	case observe.KindSession:
		return "duel.session"
	case observe.KindRawLog:
		return "duel.rawlog"
	case observe.KindStep:
		if event.ToolName != "" {
			return "duel.step." + event.ToolName
		}
		return "duel.step"
	case observe.KindCompletion:
		return "duel.completion"
	default:
		if event.Name != "" {
			return "duel." + event.Name
		}
		return "duel.event"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
