// Package otel sets up the OpenTelemetry log pipeline the slog bridge writes to.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/OCAP2/routemonitor/internal/config"
)

const (
	defaultServiceName  = "routemonitor"
	defaultBatchTimeout = 5 * time.Second
)

var ErrNoLogOutput = errors.New("OTel enabled but no log writer or endpoint configured")

// Provider owns the OTel logger provider. The zero value is disabled.
type Provider struct {
	serviceName string
	logs        *sdklog.LoggerProvider
}

// New builds a provider exporting to logWriter and, when cfg.Endpoint is set,
// over OTLP/HTTP. A disabled config yields a disabled provider.
func New(cfg config.OTelConfig, logWriter io.Writer) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}

	ctx := context.Background()
	exporters, err := logExporters(ctx, cfg, logWriter)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, exp := range exporters {
		opts = append(opts, sdklog.WithProcessor(
			sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout)),
		))
	}

	return &Provider{
		serviceName: cfg.ServiceName,
		logs:        sdklog.NewLoggerProvider(opts...),
	}, nil
}

func logExporters(ctx context.Context, cfg config.OTelConfig, w io.Writer) ([]sdklog.Exporter, error) {
	var out []sdklog.Exporter

	if w != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(w), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		out = append(out, exp)
	}

	if cfg.Endpoint != "" {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		out = append(out, exp)
	}

	if len(out) == 0 {
		return nil, ErrNoLogOutput
	}
	return out, nil
}

func (p *Provider) Enabled() bool {
	return p.logs != nil
}

// LoggerProvider is nil when disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logs
}

// Meter returns a meter from the global provider, or a no-op meter when
// disabled. Prometheus carries the process metrics.
func (p *Provider) Meter(name string) metric.Meter {
	if !p.Enabled() {
		return noop.NewMeterProvider().Meter(name)
	}
	return otel.Meter(name)
}

func (p *Provider) Flush(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	if err := p.logs.ForceFlush(ctx); err != nil {
		return fmt.Errorf("log flush failed: %w", err)
	}
	return nil
}

// Shutdown flushes and stops every exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	if err := p.logs.Shutdown(ctx); err != nil {
		return fmt.Errorf("log shutdown failed: %w", err)
	}
	return nil
}
