package connection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/internal/enum"
	reviewloop_errors "github.com/reviewloop/reviewloop/internal/errors"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/repository"
	"github.com/reviewloop/reviewloop/internal/testutil"
	"github.com/reviewloop/reviewloop/services/crypto"
)

func TestConnectDisconnect(t *testing.T) {
	db, err := testutil.OpenInMemory(repository.MigrateDB)
	require.NoError(t, err)
	defer testutil.Close(db)

	ctx := context.Background()
	repos := repository.InitRepositories(db)
	tenant := &models.Tenant{BusinessName: "Blue Door Salon"}
	require.NoError(t, repos.TenantRepository.Create(ctx, tenant))

	aes, err := crypto.NewAESCrypto("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	service := NewConnectionService(repos.MailConnectionRepository, aes)

	_, err = service.Get(ctx, tenant.ID)
	assert.ErrorIs(t, err, reviewloop_errors.ErrNoMailConnection)

	connected, err := service.Connect(ctx, tenant.ID, ConnectInput{
		Provider:     enum.MailProviderGoogle,
		EmailAddress: "Hello@BlueDoor.example.com",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello@bluedoor.example.com", connected.EmailAddress)
	assert.Equal(t, "smtp.gmail.com", connected.SmtpServer)
	assert.Equal(t, 587, connected.SmtpPort)
	assert.NotEqual(t, "access-1", connected.AccessToken)
	plain, err := aes.Decrypt(connected.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access-1", plain)

	// reconnecting replaces the identity
	replaced, err := service.Connect(ctx, tenant.ID, ConnectInput{
		Provider:     enum.MailProviderOutlook,
		EmailAddress: "owner@bluedoor.example.com",
		SmtpPort:     465,
		AccessToken:  "access-2",
	})
	require.NoError(t, err)
	assert.Equal(t, connected.ID, replaced.ID)
	assert.Equal(t, enum.MailProviderOutlook, replaced.Provider)
	assert.Equal(t, "smtp.office365.com", replaced.SmtpServer)
	assert.Equal(t, 465, replaced.SmtpPort)

	require.NoError(t, service.Disconnect(ctx, tenant.ID))
	_, err = service.Get(ctx, tenant.ID)
	assert.ErrorIs(t, err, reviewloop_errors.ErrNoMailConnection)
}

func TestConnectValidation(t *testing.T) {
	aes, err := crypto.NewAESCrypto("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	service := NewConnectionService(nil, aes)
	ctx := context.Background()

	_, err = service.Connect(ctx, "tnt_1", ConnectInput{Provider: "yahoo", EmailAddress: "a@example.com", AccessToken: "x"})
	assert.ErrorIs(t, err, reviewloop_errors.ErrInvalidInput)

	_, err = service.Connect(ctx, "tnt_1", ConnectInput{Provider: enum.MailProviderGoogle, EmailAddress: "nope", AccessToken: "x"})
	assert.ErrorIs(t, err, reviewloop_errors.ErrInvalidEmailAddress)

	_, err = service.Connect(ctx, "tnt_1", ConnectInput{Provider: enum.MailProviderGoogle, EmailAddress: "a@example.com"})
	assert.ErrorIs(t, err, reviewloop_errors.ErrInvalidInput)
}
