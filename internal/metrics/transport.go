package metrics

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// Transport returns a RoundTripper that records HTTP client metrics.
// Transport-level failures are recorded with status 0.
func Transport(reg *Registry, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		reg.InFlightInc()
		defer reg.InFlightDec()

		start := time.Now()
		resp, err := next.RoundTrip(r)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		reg.RecordRequest(r.Method, r.URL.Path, status, time.Since(start).Seconds())
		return resp, err
	})
}

// LoggingTransport returns a RoundTripper that logs each request.
func LoggingTransport(logger *zap.Logger, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", r.Header.Get("X-Request-ID")),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			logger.Warn("request failed", append(fields, zap.Error(err))...)
			return resp, err
		}

		fields = append(fields, zap.Int("status", resp.StatusCode))
		if resp.StatusCode >= 400 {
			logger.Warn("request returned error status", fields...)
		} else {
			logger.Debug("request", fields...)
		}
		return resp, err
	})
}
