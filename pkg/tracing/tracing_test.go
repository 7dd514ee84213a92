package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartSpan_NoTracer(t *testing.T) {
	SetTracer(nil)

	ctx, span := StartSpan(context.Background(), "matching.Service.MatchProfile")
	defer span.End()

	assert.NotNil(t, ctx)
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetSpanID(ctx))
}

func TestNewOTLPExporter_UnsupportedProtocol(t *testing.T) {
	cfg := DefaultOTLPConfig()
	cfg.Protocol = "carrier-pigeon"

	_, err := NewOTLPExporter(context.Background(), cfg)
	assert.ErrorContains(t, err, "unsupported OTLP protocol")
}
