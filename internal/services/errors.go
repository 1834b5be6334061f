package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ProviderError wraps a failure from an external AI provider with enough
// classification for the worker's retry policy. Only rate-limit and
// transient-gateway signals are retryable; everything else fails the entity
// immediately.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s failed with status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewHTTPProviderError classifies an HTTP failure from a provider endpoint.
func NewHTTPProviderError(provider, op string, statusCode int, body string) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Op:         op,
		StatusCode: statusCode,
		Retryable:  retryableStatus(statusCode),
		Err:        errors.New(truncate(body, 300)),
	}
}

// NewNetworkProviderError classifies a transport-level failure.
func NewNetworkProviderError(provider, op string, err error) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Op:        op,
		Retryable: retryableNetworkError(err),
		Err:       err,
	}
}

// IsRetryable reports whether err is a provider error worth another attempt.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout
}

func retryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "broken pipe")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
