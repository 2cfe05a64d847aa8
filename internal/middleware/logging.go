package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Logging records method, path, status and latency for each outbound request.
func Logging(logger *zap.Logger, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(req)
		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			logger.Debug("request failed", append(fields, zap.Error(err))...)
			return nil, err
		}
		logger.Debug("request", append(fields, zap.Int("status", resp.StatusCode))...)
		return resp, nil
	})
}
