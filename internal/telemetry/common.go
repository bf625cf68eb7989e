package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Telemetry holds the OpenTelemetry metric plumbing shared by the service.
type Telemetry struct {
	server   *http.Server          // Only set when the "scraper" exporter is active.
	Provider *metric.MeterProvider // gRPC exporter otherwise.
	meter    api.Meter
	ctx      *context.Context
}

var (
	once sync.Once
)

// InitMetrics selects the exporter via METRICS_EXPORTER: "scraper" serves a
// Prometheus page on :9080/metrics, anything else pushes OTLP over gRPC to
// OTEL_EXPORTER_OTLP_METRICS_ENDPOINT (default localhost:4317).
func (t *Telemetry) InitMetrics(meterName string, ctx *context.Context) *Telemetry {
	metricsExporter := getEnvWithDefault("METRICS_EXPORTER", "")
	t.ctx = ctx

	once.Do(func() {
		if metricsExporter == "scraper" {
			slog.Info("Starting metrics with scraper exporter")
			t.initScrapeMetrics(meterName)
		} else {
			slog.Info("Starting metrics with grpc exporter")
			t.initGRPCMetrics(meterName)
		}
	})
	return &Telemetry{
		server:   t.server,
		Provider: t.Provider,
		meter:    t.meter,
		ctx:      t.ctx,
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (t *Telemetry) Close() {
	if t.Provider != nil {
		t.Provider.ForceFlush(*t.ctx)
	}
}

func (t *Telemetry) initGRPCMetrics(meterName string) {
	exporter, err := otlpmetricgrpc.New(*t.ctx)
	if err != nil {
		slog.Error("Creating GRPC exporter", "error", err)

		return
	}

	t.Provider = metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(exporter)))
	otel.SetMeterProvider(t.Provider)
	t.meter = t.Provider.Meter(meterName)
}

func (t *Telemetry) initScrapeMetrics(meterName string) {
	// The prometheus exporter doubles as Reader and Collector.
	exporter, err := prometheus.New()
	if err != nil {
		slog.Error("Creating HTML scrape exporter", "error", err)

		return
	}

	t.Provider = metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(t.Provider)
	t.meter = t.Provider.Meter(meterName)

	go t.serveMetrics()
}

func (t *Telemetry) serveMetrics() {
	slog.Info("Serving metrics at localhost:9080/metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	t.server = &http.Server{
		Addr:    ":9080",
		Handler: mux,
	}

	err := t.server.ListenAndServe()
	if err != nil {
		if fmt.Sprint(err) == "http: Server closed" {
			slog.Info("Shutting down server", "message", err)
		} else {
			slog.Error("ListenAndServe exited with", "error", err)
		}

		return
	}
}
