package bootstrap

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"panel-agent/internal/config"
)

const serviceName = "panel-agent"

func newTraceProvider(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	providerOptions := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	if cfg.AppConfig.Tracing {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}

		providerOptions = append(providerOptions, sdktrace.WithBatcher(exporter))
		logger.Info("Trace export to stdout enabled")
	}

	tp := sdktrace.NewTracerProvider(providerOptions...)
	otel.SetTracerProvider(tp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})

	return tp, nil
}
