package observability

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/codeflow-backend/internal/platform/envutil"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

const defaultServiceName = "codeflow-backend"

// OtelConfig describes the process to the trace backend. Besides the service
// identity it carries the settings that explain claim latency in a trace:
// how many worker loops run, against which store, and how stale claims are
// reclaimed.
type OtelConfig struct {
	ServiceName string
	Environment string
	Version     string
	Enabled     bool

	DBDriver          string
	EventBus          string
	WorkerConcurrency int
	WorkerPoll        time.Duration
	StaleClaim        time.Duration
	SequencerMargin   float64
}

var (
	otelOnce     sync.Once
	otelShutdown func(context.Context) error
)

// InitOTel installs the global tracer provider once per process. It returns
// nil when tracing is disabled.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	otelOnce.Do(func() {
		if !cfg.Enabled {
			return
		}
		res, err := resource.New(ctx, resource.WithAttributes(resourceAttributes(cfg)...))
		if err != nil && log != nil {
			log.Warn("otel resource init failed (continuing)", "error", err)
		}

		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio()))),
			sdktrace.WithResource(res),
		}
		exporter, err := newSpanExporter(ctx, log)
		if err != nil && log != nil {
			log.Warn("otel exporter init failed (continuing)", "error", err)
		}
		if exporter != nil {
			opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
		}
		tp := sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		otelShutdown = tp.Shutdown
		if log != nil {
			log.Info("otel tracing initialized",
				"service", serviceName(cfg),
				"endpoint", envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
				"worker_concurrency", cfg.WorkerConcurrency,
			)
		}
	})
	return otelShutdown
}

func serviceName(cfg OtelConfig) string {
	if name := strings.TrimSpace(cfg.ServiceName); name != "" {
		return name
	}
	return defaultServiceName
}

// resourceAttributes skips unset domain settings so a partial config does not
// report zero concurrency or an empty driver.
func resourceAttributes(cfg OtelConfig) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(serviceName(cfg)),
		semconv.ServiceVersionKey.String(strings.TrimSpace(cfg.Version)),
		semconv.DeploymentEnvironmentNameKey.String(strings.TrimSpace(cfg.Environment)),
	}
	if d := strings.ToLower(strings.TrimSpace(cfg.DBDriver)); d != "" {
		attrs = append(attrs, attribute.String("codeflow.db.driver", d))
	}
	if b := strings.TrimSpace(cfg.EventBus); b != "" {
		attrs = append(attrs, attribute.String("codeflow.event_bus", b))
	}
	if cfg.WorkerConcurrency > 0 {
		attrs = append(attrs, attribute.Int("codeflow.worker.concurrency", cfg.WorkerConcurrency))
	}
	if cfg.WorkerPoll > 0 {
		attrs = append(attrs, attribute.String("codeflow.worker.poll_interval", cfg.WorkerPoll.String()))
	}
	if cfg.StaleClaim > 0 {
		attrs = append(attrs, attribute.String("codeflow.worker.stale_claim", cfg.StaleClaim.String()))
	}
	if cfg.SequencerMargin > 0 {
		attrs = append(attrs, attribute.Float64("codeflow.sequencer.margin", cfg.SequencerMargin))
	}
	return attrs
}

func sampleRatio() float64 {
	f := envutil.Float("OTEL_SAMPLER_RATIO", 0.1)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// otlpHeaders parses OTEL_EXPORTER_OTLP_HEADERS ("k=v,k2=v2").
func otlpHeaders() map[string]string {
	var headers map[string]string
	for _, part := range envutil.List("OTEL_EXPORTER_OTLP_HEADERS", nil) {
		key, val, ok := strings.Cut(part, "=")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !ok || key == "" || val == "" {
			continue
		}
		if headers == nil {
			headers = map[string]string{}
		}
		headers[key] = val
	}
	return headers
}

// newSpanExporter ships spans over OTLP/HTTP when an endpoint is configured
// and pretty-prints them to stdout otherwise.
func newSpanExporter(ctx context.Context, log *logger.Logger) (sdktrace.SpanExporter, error) {
	endpoint := envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	if endpoint == "" {
		if log != nil {
			log.Warn("otel using stdout exporter (no OTLP endpoint configured)")
		}
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		return exp, nil
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false) {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if headers := otlpHeaders(); headers != nil {
		opts = append(opts, otlptracehttp.WithHeaders(headers))
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return exp, nil
}

// Tracer returns the named tracer from the global provider; it is a no-op
// tracer until InitOTel installs a real provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
