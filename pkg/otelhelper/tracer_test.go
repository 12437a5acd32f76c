package otelhelper

import (
	"errors"
	"testing"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_SetError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, span := StartSpan(t.Context(), tracer, "graph.add_node", attribute.String(WorkflowIDKey, "wf-1"))
	SetError(span, errors.New("boom"), attribute.String(NodeIDKey, "n1"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	assert.Equal(t, "graph.add_node", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	assert.Contains(t, spans[0].Attributes(), attribute.String(WorkflowIDKey, "wf-1"))

	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
	assert.Contains(t, spans[0].Events()[0].Attributes, attribute.String(NodeIDKey, "n1"))
}

func TestSetError_GraphErrors(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	_, span := StartSpan(t.Context(), tracer, "graph.remove_node")
	SetError(span, models.NewGraph().RemoveNode("ghost"))
	span.End()

	_, span = StartSpan(t.Context(), tracer, "workflow.hydrate")
	_, err := models.Hydrate(models.Document{Name: "", Status: "archived"})
	require.Error(t, err)
	SetError(span, err)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	notFound := spans[0].Events()[0].Attributes
	assert.Contains(t, notFound, attribute.String(ErrorCodeKey, "not_found"))

	invalid := spans[1].Events()[0].Attributes
	assert.Contains(t, invalid, attribute.Int(ViolationCountKey, 2))
	assert.Contains(t, invalid, attribute.String(ErrorCodeKey, "validation_error"))
}

func TestGlobalTracer_NoopByDefault(t *testing.T) {
	_, span := StartSpan(t.Context(), GlobalTracer("test"), "noop")
	defer span.End()

	assert.False(t, span.SpanContext().IsSampled())
}
