package httpadapter

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrModelUnavailable), domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
}

// errorBody keeps client error detail and hides server-side causes behind the kind.
func errorBody(err error, status int) errorResponse {
	body := errorResponse{Kind: domain.KindName(err)}

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		body.Error = verr.Error()
		body.Field = verr.Field
	case status >= http.StatusInternalServerError:
		body.Error = strings.ToLower(http.StatusText(status))
	default:
		body.Error = err.Error()
	}
	return body
}
