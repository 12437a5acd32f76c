package otelhelper

import (
	"errors"

	"github.com/dukex/stepflow/pkg/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	ErrorCodeKey      = "stepflow.error.code"
	ViolationCountKey = "stepflow.error.violations"
)

// SetError marks the span as failed. Graph errors add their code and
// violation lists add their size to the recorded exception.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	var violations *models.ViolationsError
	if errors.As(err, &violations) {
		attrs = append(attrs, attribute.Int(ViolationCountKey, len(violations.Violations)))
	}

	var graphErr *models.GraphError
	if errors.As(err, &graphErr) {
		attrs = append(attrs, attribute.String(ErrorCodeKey, graphErr.Code()))
	}

	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}
