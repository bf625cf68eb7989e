package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// StorefrontApiTelemetry provides telemetry for the storefront API endpoints
type StorefrontApiTelemetry struct {
	meter metric.Meter

	requestCounter    metric.Int64Counter
	errorCounter      metric.Int64Counter
	durationHistogram metric.Float64Histogram

	// Business-level counters recorded by the handlers.
	checkoutCounter   metric.Int64Counter
	redemptionCounter metric.Int64Counter
	payoutCounter     metric.Int64Counter
	commissionCounter metric.Int64Counter
}

// StorefrontApiMetrics contains the telemetry data for a request
type StorefrontApiMetrics struct {
	Method       string
	Endpoint     string
	StatusCode   int
	Duration     time.Duration
	ErrorMessage string
	// Client information with controlled cardinality
	ClientIP     string // Raw IP for logging, will be normalized for metrics
	ClientIPType string // Normalized IP type: "internal", "external", "localhost"
}

// NewStorefrontApiTelemetry creates a new instance of StorefrontApiTelemetry
func NewStorefrontApiTelemetry() *StorefrontApiTelemetry {
	return &StorefrontApiTelemetry{}
}

// InitializeTelemetry sets up all the telemetry instruments for the storefront API
func (t *StorefrontApiTelemetry) InitializeTelemetry(ctx context.Context) error {
	slog.Info("Initializing storefront API telemetry")

	t.meter = otel.Meter("biolink-storefront-api")

	var err error

	t.requestCounter, err = t.meter.Int64Counter(
		"storefront_api_requests_total",
		metric.WithDescription("Total number of API requests to storefront endpoints"),
		metric.WithUnit("1"),
	)
	if err != nil {
		slog.Error("Failed to create request counter", "error", err)
		return fmt.Errorf("failed to create request counter: %w", err)
	}

	t.errorCounter, err = t.meter.Int64Counter(
		"storefront_api_errors_total",
		metric.WithDescription("Total number of API errors from storefront endpoints"),
		metric.WithUnit("1"),
	)
	if err != nil {
		slog.Error("Failed to create error counter", "error", err)
		return fmt.Errorf("failed to create error counter: %w", err)
	}

	t.durationHistogram, err = t.meter.Float64Histogram(
		"storefront_api_request_duration_seconds",
		metric.WithDescription("Duration of API requests to storefront endpoints"),
		metric.WithUnit("s"),
	)
	if err != nil {
		slog.Error("Failed to create duration histogram", "error", err)
		return fmt.Errorf("failed to create duration histogram: %w", err)
	}

	t.checkoutCounter, err = t.meter.Int64Counter(
		"storefront_checkouts_total",
		metric.WithDescription("Total number of completed checkouts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		slog.Error("Failed to create checkout counter", "error", err)
		return fmt.Errorf("failed to create checkout counter: %w", err)
	}

	t.redemptionCounter, err = t.meter.Int64Counter(
		"storefront_voucher_redemptions_total",
		metric.WithDescription("Total number of voucher redemptions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		slog.Error("Failed to create redemption counter", "error", err)
		return fmt.Errorf("failed to create redemption counter: %w", err)
	}

	t.payoutCounter, err = t.meter.Int64Counter(
		"storefront_payout_requests_total",
		metric.WithDescription("Total number of payout requests created"),
		metric.WithUnit("1"),
	)
	if err != nil {
		slog.Error("Failed to create payout counter", "error", err)
		return fmt.Errorf("failed to create payout counter: %w", err)
	}

	t.commissionCounter, err = t.meter.Int64Counter(
		"storefront_commissions_processed_total",
		metric.WithDescription("Total number of commission distributions processed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		slog.Error("Failed to create commission counter", "error", err)
		return fmt.Errorf("failed to create commission counter: %w", err)
	}

	slog.Info("Storefront API telemetry initialized successfully")
	return nil
}

// RegisterRequestReceived records a successful API request
func (t *StorefrontApiTelemetry) RegisterRequestReceived(ctx context.Context, metrics StorefrontApiMetrics) {
	if t.requestCounter == nil {
		slog.Warn("Request counter not initialized")
		return
	}

	// Low-cardinality attributes only to prevent metric explosion
	attrs := []attribute.KeyValue{
		attribute.String("method", metrics.Method),
		attribute.String("endpoint", metrics.Endpoint),
		attribute.Int("status_code", metrics.StatusCode),
	}

	if metrics.ClientIPType != "" {
		attrs = append(attrs, attribute.String("client_ip_type", metrics.ClientIPType))
	}

	t.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	slog.Debug("Recorded successful API request",
		"method", metrics.Method,
		"endpoint", metrics.Endpoint,
		"status_code", metrics.StatusCode,
		"client_ip", metrics.ClientIP,
		"duration_ms", metrics.Duration.Milliseconds(),
	)
}

// RegisterRequestError records a failed API request
func (t *StorefrontApiTelemetry) RegisterRequestError(ctx context.Context, metrics StorefrontApiMetrics) {
	if t.errorCounter == nil {
		slog.Warn("Error counter not initialized")
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", metrics.Method),
		attribute.String("endpoint", metrics.Endpoint),
		attribute.Int("status_code", metrics.StatusCode),
		attribute.String("error_type", categorizeError(metrics.ErrorMessage)),
	}

	if metrics.ClientIPType != "" {
		attrs = append(attrs, attribute.String("client_ip_type", metrics.ClientIPType))
	}

	t.errorCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	slog.Warn("Recorded API request error",
		"method", metrics.Method,
		"endpoint", metrics.Endpoint,
		"status_code", metrics.StatusCode,
		"client_ip", metrics.ClientIP,
		"error", metrics.ErrorMessage,
	)
}

// RegisterRequestDuration records the duration of an API request
func (t *StorefrontApiTelemetry) RegisterRequestDuration(ctx context.Context, metrics StorefrontApiMetrics) {
	if t.durationHistogram == nil {
		slog.Warn("Duration histogram not initialized")
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", metrics.Method),
		attribute.String("endpoint", metrics.Endpoint),
		attribute.Int("status_code", metrics.StatusCode),
	}

	t.durationHistogram.Record(ctx, metrics.Duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordCheckout counts a completed checkout for a reseller storefront.
func (t *StorefrontApiTelemetry) RecordCheckout(ctx context.Context, resellerID string) {
	if t.checkoutCounter == nil {
		return
	}
	t.checkoutCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reseller_id", resellerID),
	))
}

// RecordVoucherRedemption counts a voucher redemption attempt by outcome.
func (t *StorefrontApiTelemetry) RecordVoucherRedemption(ctx context.Context, voucherType string, success bool) {
	if t.redemptionCounter == nil {
		return
	}
	t.redemptionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("voucher_type", voucherType),
		attribute.Bool("success", success),
	))
}

// RecordPayoutRequest counts a created payout request by method.
func (t *StorefrontApiTelemetry) RecordPayoutRequest(ctx context.Context, method string) {
	if t.payoutCounter == nil {
		return
	}
	t.payoutCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
	))
}

// RecordCommissionProcessed counts a processed commission distribution.
func (t *StorefrontApiTelemetry) RecordCommissionProcessed(ctx context.Context, duplicate bool) {
	if t.commissionCounter == nil {
		return
	}
	t.commissionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("duplicate", duplicate),
	))
}

// categorizeError groups similar errors to prevent high cardinality
func categorizeError(errorMessage string) string {
	if errorMessage == "" {
		return "unknown"
	}

	switch {
	case strings.Contains(errorMessage, "not found"):
		return "not_found"
	case strings.Contains(errorMessage, "invalid"):
		return "invalid_request"
	case strings.Contains(errorMessage, "unauthorized"):
		return "unauthorized"
	case strings.Contains(errorMessage, "forbidden"):
		return "forbidden"
	case strings.Contains(errorMessage, "timeout"):
		return "timeout"
	case strings.Contains(errorMessage, "internal"):
		return "internal_error"
	case strings.Contains(errorMessage, "bad request"):
		return "bad_request"
	case strings.Contains(errorMessage, "conflict"):
		return "conflict"
	default:
		return "other"
	}
}

// GetEndpointFromPath collapses path parameters into template form so each
// route produces a single metric series.
func GetEndpointFromPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")

	templates := map[string]string{
		"products":   "{productId}",
		"storefront": "{username}",
		"carts":      "{cartId}",
		"orders":     "{orderId}",
		"wallets":    "{userId}",
		"resellers":  "{resellerId}",
		"vouchers":   "{voucherId}",
		"shares":     "{shareId}",
		"payouts":    "{payoutId}",
		"scan":       "{code}",
		"items":      "{productId}",
		"listings":   "{productId}",
	}

	for i := 1; i < len(segments); i++ {
		if placeholder, ok := templates[segments[i-1]]; ok {
			segments[i] = placeholder
		}
	}

	return "/" + strings.Join(segments, "/")
}

// NormalizeClientIP categorizes client IPs to control cardinality
func NormalizeClientIP(clientIP string) string {
	if clientIP == "" {
		return "unknown"
	}

	ip := net.ParseIP(clientIP)
	if ip == nil {
		return "invalid"
	}

	if isPrivateIP(ip) {
		return "internal"
	}

	if ip.IsLoopback() {
		return "localhost"
	}

	return "external"
}

func isPrivateIP(ip net.IP) bool {
	privateRanges := []string{
		"10.0.0.0/8",     // RFC1918
		"172.16.0.0/12",  // RFC1918
		"192.168.0.0/16", // RFC1918
		"169.254.0.0/16", // RFC3927 (link-local)
		"fc00::/7",       // RFC4193 (IPv6 unique local)
		"fe80::/10",      // RFC4291 (IPv6 link-local)
	}

	for _, rangeStr := range privateRanges {
		_, network, err := net.ParseCIDR(rangeStr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}

	return false
}
