package mlflow

import (
	"errors"
	"net/http"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/infrastructure/resilience"
)

const errorCodeNotFound = "RESOURCE_DOES_NOT_EXIST"

func classifyMLflowError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyTransport(err); ok {
		return class
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return resilience.ClassifyHTTPStatus(statusErr.StatusCode)
	}
	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

func isNotFound(err error) bool {
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusNotFound || statusErr.ErrorCode == errorCodeNotFound
}

// wrapRegistryError maps a failed registry call to the model-unavailable kind, additionally
// marking transient failures as temporary.
func wrapRegistryError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrModelUnavailable) {
		return err
	}
	if isTransient(err) {
		err = domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return domain.WrapError(domain.ErrModelUnavailable, operation, err)
}

// wrapInferenceError maps a failed scoring call to the inference kind.
func wrapInferenceError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrInference) {
		return err
	}
	if isTransient(err) {
		err = domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return domain.WrapError(domain.ErrInference, operation, err)
}

func isTransient(err error) bool {
	return classifyMLflowError(err).Retryable || resilience.IsCircuitOpen(err)
}
