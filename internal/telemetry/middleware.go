package telemetry

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TelemetryMiddleware wraps HTTP handlers to automatically collect telemetry
type TelemetryMiddleware struct {
	telemetry *StorefrontApiTelemetry
}

// NewTelemetryMiddleware creates a new telemetry middleware
func NewTelemetryMiddleware(telemetry *StorefrontApiTelemetry) *TelemetryMiddleware {
	return &TelemetryMiddleware{
		telemetry: telemetry,
	}
}

// Middleware returns the HTTP middleware function
func (tm *TelemetryMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		clientIP := getClientIP(r)
		metrics := StorefrontApiMetrics{
			Method:       r.Method,
			Endpoint:     GetEndpointFromPath(r.URL.Path),
			ClientIP:     clientIP,
			ClientIPType: NormalizeClientIP(clientIP),
		}

		next.ServeHTTP(wrapper, r)

		metrics.StatusCode = wrapper.statusCode
		metrics.Duration = time.Since(start)

		ctx := r.Context()
		if wrapper.statusCode >= 400 {
			metrics.ErrorMessage = tm.getErrorMessage(wrapper.statusCode)
			tm.telemetry.RegisterRequestError(ctx, metrics)
		} else {
			tm.telemetry.RegisterRequestReceived(ctx, metrics)
		}

		tm.telemetry.RegisterRequestDuration(ctx, metrics)
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWrapper) Write(data []byte) (int, error) {
	return w.ResponseWriter.Write(data)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			ip := strings.TrimSpace(ips[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// getErrorMessage returns a human-readable error message for the status code
func (tm *TelemetryMiddleware) getErrorMessage(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "Bad Request"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "Not Found"
	case http.StatusMethodNotAllowed:
		return "Method Not Allowed"
	case http.StatusConflict:
		return "Conflict"
	case http.StatusUnprocessableEntity:
		return "Unprocessable Entity"
	case http.StatusTooManyRequests:
		return "Too Many Requests"
	case http.StatusInternalServerError:
		return "Internal Server Error"
	case http.StatusServiceUnavailable:
		return "Service Unavailable"
	default:
		return "HTTP Error " + strconv.Itoa(statusCode)
	}
}
