package reviewloop_errors

import "github.com/pkg/errors"

var (
	ErrTenantNotSet = errors.New("tenant not set on context")
	ErrInvalidInput = errors.New("invalid input parameters")

	// tracking tokens
	ErrInvalidToken = errors.New("invalid tracking token")
	ErrTokenExpired = errors.New("tracking token expired")
	ErrInvalidLink  = errors.New("invalid link")

	// lookups
	ErrNotFound       = errors.New("not found")
	ErrTenantNotFound = errors.Wrap(ErrNotFound, "tenant")

	// campaign model
	ErrDuplicateServiceTag = errors.New("a retention program with this service tag already exists")
	ErrEmptyServiceTag     = errors.New("service tag is empty after normalization")

	// sending
	ErrMailerFailure       = errors.New("mailer failure")
	ErrNoMailConnection    = errors.New("tenant has no connected mail account")
	ErrAlreadySent         = errors.New("email already sent")
	ErrTemplateMissing     = errors.New("template missing")
	ErrInvalidEmailAddress = errors.New("email address is invalid")
)
