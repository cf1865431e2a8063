package errors

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	reviewloop_errors "github.com/reviewloop/reviewloop/internal/errors"
)

// ErrorResponse is the body of every failed /v1 request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type mapping struct {
	target  error
	status  int
	code    string
	message string
}

// first match wins; ErrTenantNotFound wraps ErrNotFound so it must come first
var mappings = []mapping{
	{reviewloop_errors.ErrTenantNotFound, http.StatusNotFound, "tenant_not_found", "tenant not found"},
	{reviewloop_errors.ErrNotFound, http.StatusNotFound, "not_found", ""},
	{reviewloop_errors.ErrNoMailConnection, http.StatusNotFound, "no_mail_connection", ""},
	{reviewloop_errors.ErrDuplicateServiceTag, http.StatusConflict, "duplicate_service_tag",
		"a retention program with this service tag already exists; edit that program or choose another tag"},
	{reviewloop_errors.ErrEmptyServiceTag, http.StatusBadRequest, "empty_service_tag", ""},
	{reviewloop_errors.ErrInvalidEmailAddress, http.StatusBadRequest, "invalid_email", ""},
	{reviewloop_errors.ErrInvalidInput, http.StatusBadRequest, "invalid_input", ""},
	{reviewloop_errors.ErrTenantNotSet, http.StatusBadRequest, "tenant_missing", ""},
	{reviewloop_errors.ErrInvalidLink, http.StatusBadRequest, "invalid_link", ""},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout", "request timed out"},
	{context.Canceled, http.StatusServiceUnavailable, "cancelled", "request cancelled"},
}

// Status maps a domain error to an HTTP status and a response body.
// Unknown errors become a 500 without detail.
func Status(err error) (int, ErrorResponse) {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			message := m.message
			if message == "" {
				message = err.Error()
			}
			return m.status, ErrorResponse{Error: message, Code: m.code}
		}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "internal"}
}

// ClickStatus is the status of the public redirect entry point. Its page never
// carries error detail.
func ClickStatus(err error) int {
	switch {
	case errors.Is(err, reviewloop_errors.ErrInvalidLink):
		return http.StatusBadRequest
	case errors.Is(err, reviewloop_errors.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
