package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

var (
	transient = ErrorClassification{Retryable: true, RecordFailure: true}
	permanent = ErrorClassification{Retryable: false, RecordFailure: true}
	ignored   = ErrorClassification{Retryable: false, RecordFailure: false}
)

// ClassifyTransport handles the cases shared by every network dependency: caller cancellation,
// an open breaker and net.Error. ok is false when err needs a dependency-specific decision.
func ClassifyTransport(err error) (class ErrorClassification, ok bool) {
	switch {
	case err == nil:
		return ErrorClassification{}, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ignored, true
	case IsCircuitOpen(err):
		return transient, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return transient, true
	}
	return ErrorClassification{}, false
}

// ClassifyHTTPStatus treats throttling, timeouts and 5xx as retryable. Other statuses are the
// caller's fault and do not count against the breaker.
func ClassifyHTTPStatus(statusCode int) ErrorClassification {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return transient
	default:
		return ignored
	}
}

func defaultClassifier(err error) ErrorClassification {
	if class, ok := ClassifyTransport(err); ok {
		return class
	}
	return permanent
}
