// Package observability трассировка операций с мирами через OpenTelemetry.
// Пока InitTelemetry не вызван, глобальный провайдер пустой и спаны ничего
// не стоят.
package observability

import (
	"context"
	"time"

	"github.com/annel0/meadow-world/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName имя трейсера движка миров
const TracerName = "github.com/annel0/meadow-world/layers"

// Атрибуты спанов миров
var (
	AttrWorldID = attribute.Key("meadow.world.id")
	AttrLayer   = attribute.Key("meadow.world.layer")
	AttrProfile = attribute.Key("meadow.profile")
)

// Options настройки трассировки
type Options struct {
	ServiceName string
	Profile     string  // Слот сохранения, попадает в ресурс
	Endpoint    string  // host:port OTLP HTTP; пусто = OTEL_EXPORTER_OTLP_ENDPOINT или localhost:4318
	Insecure    bool    // http вместо https
	SampleRatio float64 // 0 или >= 1 = все трассы

	// Exporter заменяет OTLP. Экспорт тогда синхронный.
	Exporter sdktrace.SpanExporter
}

// InitTelemetry настраивает экспорт спанов и устанавливает глобальный
// TracerProvider. Возвращённый shutdown дописывает буфер и закрывает экспортер.
func InitTelemetry(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "meadow-world"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			AttrProfile.String(opts.Profile),
		),
	)
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.AlwaysSample()
	if opts.SampleRatio > 0 && opts.SampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(opts.SampleRatio)
	}
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	}

	target := "exporter"
	if opts.Exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithSyncer(opts.Exporter))
	} else {
		var clientOpts []otlptracehttp.Option
		if opts.Endpoint != "" {
			clientOpts = append(clientOpts, otlptracehttp.WithEndpoint(opts.Endpoint))
		}
		if opts.Insecure {
			clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, clientOpts...)
		if err != nil {
			return nil, err
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
		target = "OTLP " + opts.Endpoint
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	logging.Info("📡 OpenTelemetry: %s, service=%s, profile=%s", target, opts.ServiceName, opts.Profile)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

// StartWorldSpan открывает спан операции над миром (layers.load, layers.save...)
func StartWorldSpan(ctx context.Context, name, worldID string, layer int) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithAttributes(AttrWorldID.String(worldID), AttrLayer.Int(layer)))
}

// EndSpan закрывает спан, помечая ошибку
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
