package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/annel0/meadow-world/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestWorldSpansReachExporter(t *testing.T) {
	prevDir := logging.LogDir
	logging.LogDir = t.TempDir()
	defer func() { logging.LogDir = prevDir }()

	ctx := context.Background()
	exp := tracetest.NewInMemoryExporter()
	shutdown, err := InitTelemetry(ctx, Options{ServiceName: "meadow-test", Profile: "slot1", Exporter: exp})
	require.NoError(t, err)
	defer shutdown(ctx)

	_, span := StartWorldSpan(ctx, "layers.load", "farm", 0)
	EndSpan(span, nil)
	_, span = StartWorldSpan(ctx, "layers.save", "cave", 1)
	EndSpan(span, errors.New("диск заполнен"))

	spans := exp.GetSpans()
	require.Len(t, spans, 2)

	load := spans[0]
	assert.Equal(t, "layers.load", load.Name)
	assert.Contains(t, load.Attributes, AttrWorldID.String("farm"))
	assert.Contains(t, load.Attributes, AttrLayer.Int(0))
	assert.Equal(t, codes.Unset, load.Status.Code)
	assert.Contains(t, load.Resource.Attributes(), AttrProfile.String("slot1"))

	save := spans[1]
	assert.Equal(t, "layers.save", save.Name)
	assert.Equal(t, codes.Error, save.Status.Code)
	assert.Equal(t, "диск заполнен", save.Status.Description)
	assert.Len(t, save.Events, 1, "ошибка записана событием")
}
