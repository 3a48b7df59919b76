package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Span pairs an OpenTelemetry span with a logger that carries its ids.
type Span struct {
	span   trace.Span
	logger *zap.Logger
}

func StartSpan(ctx context.Context, tracer trace.Tracer, logger *zap.Logger, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))

	return ctx, &Span{
		span:   span,
		logger: withSpanContext(logger, span.SpanContext()),
	}
}

func withSpanContext(logger *zap.Logger, sc trace.SpanContext) *zap.Logger {
	if !sc.IsValid() {
		return logger
	}

	return logger.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func (s *Span) End(err error) {
	if err != nil {
		s.span.SetStatus(codes.Error, err.Error())
		s.span.RecordError(err)
	} else {
		s.span.SetStatus(codes.Ok, "")
	}

	s.span.End()
}

// EndResult closes a span for operations that report failure as a boolean.
func (s *Span) EndResult(ok bool, reason string) {
	s.span.SetAttributes(attribute.Bool("result.ok", ok))

	if ok {
		s.span.SetStatus(codes.Ok, "")
	} else {
		s.span.SetAttributes(attribute.String("result.reason", reason))
		s.span.SetStatus(codes.Error, reason)
		s.logger.Debug("Span ended without success", zap.String("reason", reason))
	}

	s.span.End()
}

// Attempt records one try of an ordered fallback chain.
func (s *Span) Attempt(index int, strategy string) {
	s.span.AddEvent("attempt", trace.WithAttributes(
		attribute.Int("attempt.index", index),
		attribute.String("attempt.strategy", strategy),
	))
}

func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}
