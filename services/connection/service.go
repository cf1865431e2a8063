package connection

import (
	"context"
	"strings"
	"time"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/enum"
	reviewloop_errors "github.com/reviewloop/reviewloop/internal/errors"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
)

var defaultSmtp = map[enum.MailProvider]struct {
	host string
	port int
}{
	enum.MailProviderGoogle:  {"smtp.gmail.com", 587},
	enum.MailProviderOutlook: {"smtp.office365.com", 587},
}

// ConnectInput carries tokens obtained by the OAuth handshake
type ConnectInput struct {
	Provider     enum.MailProvider `json:"provider" validate:"required"`
	EmailAddress string            `json:"emailAddress" validate:"required,max=255"`
	DisplayName  string            `json:"displayName" validate:"max=255"`
	SmtpServer   string            `json:"smtpServer" validate:"max=255"`
	SmtpPort     int               `json:"smtpPort" validate:"gte=0,lte=65535"`
	AccessToken  string            `json:"accessToken" validate:"required"`
	RefreshToken string            `json:"refreshToken"`
	TokenExpiry  *time.Time        `json:"tokenExpiry"`
}

type Service interface {
	Connect(ctx context.Context, tenantID string, input ConnectInput) (*models.MailConnection, error)
	Disconnect(ctx context.Context, tenantID string) error
	Get(ctx context.Context, tenantID string) (*models.MailConnection, error)
}

type connectionService struct {
	repo   interfaces.MailConnectionRepository
	crypto interfaces.Crypto
}

func NewConnectionService(repo interfaces.MailConnectionRepository, crypto interfaces.Crypto) Service {
	return &connectionService{repo: repo, crypto: crypto}
}

// Connect replaces any identity the tenant had connected before
func (s *connectionService) Connect(ctx context.Context, tenantID string, input ConnectInput) (*models.MailConnection, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ConnectionService.Connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	if err := utils.ValidateStruct(input); err != nil {
		return nil, errors.Wrap(reviewloop_errors.ErrInvalidInput, err.Error())
	}
	defaults, known := defaultSmtp[input.Provider]
	if !known {
		return nil, errors.Wrapf(reviewloop_errors.ErrInvalidInput, "unsupported provider %q", input.Provider)
	}
	address := strings.ToLower(strings.TrimSpace(input.EmailAddress))
	if !mailvalidate.ValidateEmailSyntax(address).IsValid {
		return nil, errors.Wrapf(reviewloop_errors.ErrInvalidEmailAddress, "%q", input.EmailAddress)
	}

	access, err := s.crypto.Encrypt(input.AccessToken)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "encrypt access token")
	}
	refresh, err := s.crypto.Encrypt(input.RefreshToken)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "encrypt refresh token")
	}

	connection := &models.MailConnection{
		TenantID:     tenantID,
		Provider:     input.Provider,
		EmailAddress: address,
		DisplayName:  input.DisplayName,
		SmtpServer:   defaults.host,
		SmtpPort:     defaults.port,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenExpiry:  input.TokenExpiry,
	}
	if input.SmtpServer != "" {
		connection.SmtpServer = input.SmtpServer
	}
	if input.SmtpPort != 0 {
		connection.SmtpPort = input.SmtpPort
	}

	if err := s.repo.Upsert(ctx, connection); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return s.repo.GetByTenant(ctx, tenantID)
}

func (s *connectionService) Disconnect(ctx context.Context, tenantID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ConnectionService.Disconnect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	return s.repo.Delete(ctx, tenantID)
}

func (s *connectionService) Get(ctx context.Context, tenantID string) (*models.MailConnection, error) {
	connection, err := s.repo.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if connection == nil {
		return nil, reviewloop_errors.ErrNoMailConnection
	}
	return connection, nil
}
