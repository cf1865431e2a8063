package errors

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	reviewloop_errors "github.com/reviewloop/reviewloop/internal/errors"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"tenant", reviewloop_errors.ErrTenantNotFound, http.StatusNotFound, "tenant_not_found"},
		{"wrapped not found", errors.Wrap(reviewloop_errors.ErrNotFound, "program"), http.StatusNotFound, "not_found"},
		{"duplicate tag", reviewloop_errors.ErrDuplicateServiceTag, http.StatusConflict, "duplicate_service_tag"},
		{"invalid input", errors.Wrap(reviewloop_errors.ErrInvalidInput, "name is required"), http.StatusBadRequest, "invalid_input"},
		{"no connection", reviewloop_errors.ErrNoMailConnection, http.StatusNotFound, "no_mail_connection"},
		{"timeout", errors.Wrap(context.DeadlineExceeded, "cycle"), http.StatusGatewayTimeout, "timeout"},
		{"unknown", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := Status(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestStatusHidesInternalDetail(t *testing.T) {
	_, body := Status(errors.New("pq: password authentication failed"))
	assert.Equal(t, "internal server error", body.Error)
}

func TestDuplicateTagMessageIsActionable(t *testing.T) {
	_, body := Status(reviewloop_errors.ErrDuplicateServiceTag)
	assert.Contains(t, body.Error, "choose another tag")
}

func TestClickStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ClickStatus(errors.Wrap(reviewloop_errors.ErrInvalidLink, "expired")))
	assert.Equal(t, http.StatusNotFound, ClickStatus(errors.Wrap(reviewloop_errors.ErrNotFound, "customer")))
	assert.Equal(t, http.StatusNotFound, ClickStatus(reviewloop_errors.ErrTenantNotFound))
	assert.Equal(t, http.StatusInternalServerError, ClickStatus(errors.New("boom")))
}
