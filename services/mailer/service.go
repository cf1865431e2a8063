package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/reviewloop/reviewloop/dto"
	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/enum"
	reviewloop_errors "github.com/reviewloop/reviewloop/internal/errors"
	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
)

const implicitTLSPort = 465

// Config holds the OAuth clients used to refresh stored tokens
type Config struct {
	GoogleClientID      string `env:"GOOGLE_OAUTH_CLIENT_ID"`
	GoogleClientSecret  string `env:"GOOGLE_OAUTH_CLIENT_SECRET"`
	OutlookClientID     string `env:"OUTLOOK_OAUTH_CLIENT_ID"`
	OutlookClientSecret string `env:"OUTLOOK_OAUTH_CLIENT_SECRET"`
}

// smtpMessage is everything one SMTP transaction needs
type smtpMessage struct {
	host string
	port int
	auth smtp.Auth
	from string
	to   []string
	data []byte
}

type sendFunc func(ctx context.Context, msg smtpMessage) error

type mailer struct {
	log     logger.Logger
	repo    interfaces.MailConnectionRepository
	crypto  interfaces.Crypto
	oauth   map[enum.MailProvider]*oauth2.Config
	deliver sendFunc
}

func NewMailer(cfg Config, log logger.Logger, repo interfaces.MailConnectionRepository, crypto interfaces.Crypto) interfaces.Mailer {
	m := &mailer{
		log:    log,
		repo:   repo,
		crypto: crypto,
		oauth: map[enum.MailProvider]*oauth2.Config{
			enum.MailProviderGoogle: {
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     endpoints.Google,
			},
			enum.MailProviderOutlook: {
				ClientID:     cfg.OutlookClientID,
				ClientSecret: cfg.OutlookClientSecret,
				Endpoint:     endpoints.AzureAD("common"),
			},
		},
	}
	m.deliver = m.deliverSMTP
	return m
}

// Send delivers the email as the tenant's connected identity
func (m *mailer) Send(ctx context.Context, email dto.OutboundEmail) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Mailer.Send")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, email.TenantID)

	if err := validate(email); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	connection, err := m.repo.GetByTenant(ctx, email.TenantID)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "load mail connection")
	}
	if connection == nil {
		return reviewloop_errors.ErrNoMailConnection
	}
	span.LogKV("provider", connection.Provider, "from", connection.EmailAddress)

	accessToken, err := m.accessToken(ctx, connection)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	data, err := compose(connection, email)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	err = m.deliver(ctx, smtpMessage{
		host: connection.SmtpServer,
		port: connection.SmtpPort,
		auth: XOAuth2Auth(connection.EmailAddress, accessToken),
		from: connection.EmailAddress,
		to:   []string{email.To},
		data: data,
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func validate(email dto.OutboundEmail) error {
	if email.TenantID == "" {
		return errors.Wrap(reviewloop_errors.ErrInvalidInput, "tenant is required")
	}
	if !mailvalidate.ValidateEmailSyntax(email.To).IsValid {
		return errors.Wrapf(reviewloop_errors.ErrInvalidEmailAddress, "recipient %q", email.To)
	}
	if email.Subject == "" {
		return errors.Wrap(reviewloop_errors.ErrInvalidInput, "subject is required")
	}
	if email.HTML == "" && email.Text == "" {
		return errors.Wrap(reviewloop_errors.ErrInvalidInput, "email must have either text or HTML content")
	}
	return nil
}

// accessToken decrypts the stored tokens and refreshes them when expired. A
// refreshed pair is encrypted and written back.
func (m *mailer) accessToken(ctx context.Context, connection *models.MailConnection) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Mailer.accessToken")
	defer span.Finish()

	access, err := m.crypto.Decrypt(connection.AccessToken)
	if err != nil {
		return "", errors.Wrap(err, "decrypt access token")
	}
	refresh, err := m.crypto.Decrypt(connection.RefreshToken)
	if err != nil {
		return "", errors.Wrap(err, "decrypt refresh token")
	}

	current := &oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"}
	if connection.TokenExpiry != nil {
		current.Expiry = *connection.TokenExpiry
	}
	if current.Valid() {
		return access, nil
	}
	if refresh == "" {
		return "", errors.New("access token expired and no refresh token is stored")
	}

	config, ok := m.oauth[connection.Provider]
	if !ok {
		return "", errors.Errorf("unsupported mail provider %q", connection.Provider)
	}

	fresh, err := config.TokenSource(ctx, current).Token()
	if err != nil {
		return "", errors.Wrap(err, "refresh access token")
	}
	span.LogKV("token.refreshed", true)

	if fresh.RefreshToken == "" {
		fresh.RefreshToken = refresh
	}
	if err := m.storeTokens(ctx, connection.TenantID, fresh); err != nil {
		// the fresh token is still usable for this send
		tracing.TraceErr(span, err)
		m.log.Errorf("failed to store refreshed tokens for tenant %s: %v", connection.TenantID, err)
	}
	return fresh.AccessToken, nil
}

func (m *mailer) storeTokens(ctx context.Context, tenantID string, token *oauth2.Token) error {
	access, err := m.crypto.Encrypt(token.AccessToken)
	if err != nil {
		return errors.Wrap(err, "encrypt access token")
	}
	refresh, err := m.crypto.Encrypt(token.RefreshToken)
	if err != nil {
		return errors.Wrap(err, "encrypt refresh token")
	}
	var expiry *time.Time
	if !token.Expiry.IsZero() {
		expiry = utils.ToPtr(token.Expiry.UTC())
	}
	return m.repo.UpdateTokens(ctx, tenantID, access, refresh, expiry)
}

// compose builds the multipart/alternative message
func compose(connection *models.MailConnection, email dto.OutboundEmail) ([]byte, error) {
	from := mailvalidate.ValidateEmailSyntax(connection.EmailAddress)
	domain := from.Domain
	if domain == "" {
		domain = "localhost"
	}

	builder := enmime.Builder().
		From(connection.DisplayName, connection.EmailAddress).
		To(email.ToName, email.To).
		Subject(email.Subject).
		Date(utils.Now()).
		Header("Message-ID", fmt.Sprintf("<%s@%s>", utils.GenerateNanoIDWithPrefix("msg", 24), domain))
	if email.HTML != "" {
		builder = builder.HTML([]byte(email.HTML))
	}
	if email.Text != "" {
		builder = builder.Text([]byte(email.Text))
	}

	root, err := builder.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build mime message")
	}

	var buffer bytes.Buffer
	if err := root.Encode(&buffer); err != nil {
		return nil, errors.Wrap(err, "encode mime message")
	}
	return buffer.Bytes(), nil
}

// deliverSMTP dials the relay with implicit TLS on 465 and STARTTLS otherwise.
// The context deadline bounds the whole transaction. Once the relay accepted
// the data the message counts as sent, whatever QUIT answers.
func (m *mailer) deliverSMTP(ctx context.Context, msg smtpMessage) error {
	addr := net.JoinHostPort(msg.host, fmt.Sprintf("%d", msg.port))
	tlsConfig := &tls.Config{ServerName: msg.host}

	dialer := &net.Dialer{}
	var (
		conn net.Conn
		err  error
	)
	if msg.port == implicitTLSPort {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return errors.Wrap(err, "failed to connect to SMTP server")
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return errors.Wrap(err, "set connection deadline")
		}
	}

	client, err := smtp.NewClient(conn, msg.host)
	if err != nil {
		return errors.Wrap(err, "failed to create SMTP client")
	}
	defer client.Close()

	if msg.port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return errors.Wrap(err, "failed to start TLS")
			}
		}
	}

	if err := client.Auth(msg.auth); err != nil {
		return errors.Wrap(err, "SMTP authentication failed")
	}
	if err := client.Mail(msg.from); err != nil {
		return errors.Wrap(err, "SMTP MAIL command failed")
	}
	for _, recipient := range msg.to {
		if err := client.Rcpt(recipient); err != nil {
			return errors.Wrapf(err, "SMTP RCPT command failed for %s", recipient)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return errors.Wrap(err, "SMTP DATA command failed")
	}
	if _, err := writer.Write(msg.data); err != nil {
		return errors.Wrap(err, "failed to write email data")
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, "failed to close data writer")
	}
	if err := client.Quit(); err != nil {
		m.log.Warnf("SMTP QUIT failed after message was accepted by %s: %v", msg.host, err)
	}
	return nil
}
