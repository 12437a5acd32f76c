package services

import (
	"context"

	"github.com/dukex/stepflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otelhelper.GlobalTracer("github.com/dukex/stepflow/pkg/services")

// nolint:ireturn,spancheck // span is ended by the caller through finishSpan
func startSpan(ctx context.Context, name, workflowID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String(otelhelper.WorkflowIDKey, workflowID))

	return otelhelper.StartSpan(ctx, tracer, name, attrs...)
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		otelhelper.SetError(span, err)
	}

	span.End()
}
