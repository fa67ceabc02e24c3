package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rcliao/tai/internal/llm"

type traced struct {
	role    string
	next    Model
	timeout time.Duration
	tracer  trace.Tracer
}

// Traced wraps m with a span per call and a per-call timeout. A timeout of
// zero leaves the caller's deadline alone.
func Traced(role string, m Model, timeout time.Duration) Model {
	return &traced{role: role, next: m, timeout: timeout, tracer: otel.Tracer(tracerName)}
}

func (t *traced) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := t.tracer.Start(ctx, "llm.generate", trace.WithAttributes(
		attribute.String("llm.role", t.role),
		attribute.Int("llm.prompt_chars", len(prompt)),
	))
	defer span.End()

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	out, err := t.next.Generate(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.response_chars", len(out)))
	return out, nil
}
