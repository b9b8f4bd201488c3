package tracing_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/rise-and-shine/fileupload/observability/tracing"
)

func TestInitGlobalTracerDisabled(t *testing.T) {
	shutdown, err := tracing.InitGlobalTracer(tracing.Config{Disable: true}, "fileupload", "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown())
}

func TestTraceIDWithoutSpan(t *testing.T) {
	id := tracing.TraceID(t.Context())
	assert.True(t, strings.HasPrefix(id, "man-"))
	assert.NotEqual(t, id, tracing.TraceID(t.Context()))
}

func TestStartAndEnd(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx, span := tracing.Start(t.Context(), "upload.save", attribute.String("upload.alias", "Document"))
	assert.Len(t, tracing.TraceID(ctx), 32)
	tracing.End(span, nil)

	_, failed := tracing.Start(t.Context(), "upload.save")
	tracing.End(failed, errx.New("disk full", errx.WithCode("UPLOAD_STORAGE_WRITE")))

	_, plain := tracing.Start(t.Context(), "upload.delete")
	tracing.End(plain, errors.New("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	assert.Equal(t, "upload.save", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("upload.alias", "Document"))

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Contains(t, spans[1].Attributes(), attribute.String("error.code", "UPLOAD_STORAGE_WRITE"))

	assert.Equal(t, codes.Error, spans[2].Status().Code)
}
