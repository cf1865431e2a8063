package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/dto"
	reviewloop_errors "github.com/reviewloop/reviewloop/internal/errors"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func newTestCodec(secret string) (*fakeClock, *codec) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	return clock, NewCodec(secret, clock.Now).(*codec)
}

func TestCodec_RoundTrip(t *testing.T) {
	_, c := newTestCodec("s3cret")

	token, err := c.Issue(dto.TrackingLink{
		CustomerID:          "cust_123",
		DestinationOverride: "https://example.com/review",
		ProgramID:           "prog_1",
		StepID:              "step_1",
	}, 0)
	require.NoError(t, err)

	link, err := c.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "cust_123", link.CustomerID)
	assert.Equal(t, "https://example.com/review", link.DestinationOverride)
	assert.Equal(t, "prog_1", link.ProgramID)
	assert.Equal(t, "step_1", link.StepID)
	assert.Equal(t, time.Date(2024, 5, 8, 9, 0, 0, 0, time.UTC), link.ExpiresAt.UTC())
}

func TestCodec_RoundTripForManyCustomers(t *testing.T) {
	_, c := newTestCodec("s3cret")

	for _, customerID := range []string{"a", "cust_x9", "ümlaut", strings.Repeat("z", 200)} {
		token, err := c.Issue(dto.TrackingLink{CustomerID: customerID}, time.Hour)
		require.NoError(t, err)

		link, err := c.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, customerID, link.CustomerID)
		assert.Empty(t, link.DestinationOverride)
	}
}

func TestCodec_Expired(t *testing.T) {
	clock, c := newTestCodec("s3cret")

	token, err := c.Issue(dto.TrackingLink{CustomerID: "cust_123"}, time.Hour)
	require.NoError(t, err)

	clock.now = clock.now.Add(59 * time.Minute)
	_, err = c.Verify(token)
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Minute)
	_, err = c.Verify(token)
	assert.ErrorIs(t, err, reviewloop_errors.ErrTokenExpired)
}

func TestCodec_DefaultExpiryIsSevenDays(t *testing.T) {
	clock, c := newTestCodec("s3cret")

	token, err := c.Issue(dto.TrackingLink{CustomerID: "cust_123"}, 0)
	require.NoError(t, err)

	clock.now = clock.now.Add(DefaultExpiry - time.Second)
	_, err = c.Verify(token)
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Second)
	_, err = c.Verify(token)
	assert.ErrorIs(t, err, reviewloop_errors.ErrTokenExpired)
}

func TestCodec_TamperedPayloadIsInvalid(t *testing.T) {
	_, c := newTestCodec("s3cret")

	token, err := c.Issue(dto.TrackingLink{CustomerID: "cust_123"}, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload := parts[1]

	// the final character may carry padding bits only, every other one is significant
	for i := 0; i < len(payload)-1; i++ {
		replacement := byte('A')
		if payload[i] == 'A' {
			replacement = 'B'
		}
		mutated := payload[:i] + string(replacement) + payload[i+1:]
		tampered := parts[0] + "." + mutated + "." + parts[2]

		_, err := c.Verify(tampered)
		assert.ErrorIs(t, err, reviewloop_errors.ErrInvalidToken, "position %d", i)
	}
}

func TestCodec_ForeignSecretIsInvalid(t *testing.T) {
	_, issuer := newTestCodec("old-secret")
	_, verifier := newTestCodec("new-secret")

	token, err := issuer.Issue(dto.TrackingLink{CustomerID: "cust_123"}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, reviewloop_errors.ErrInvalidToken)
}

func TestCodec_ForeignSecretExpiredIsStillInvalid(t *testing.T) {
	clock, issuer := newTestCodec("old-secret")
	verifier := NewCodec("new-secret", clock.Now)

	token, err := issuer.Issue(dto.TrackingLink{CustomerID: "cust_123"}, time.Hour)
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Hour)
	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, reviewloop_errors.ErrInvalidToken)
}

func TestCodec_RejectsOtherAlgorithms(t *testing.T) {
	clock, c := newTestCodec("s3cret")

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &claims{
		CustomerID: "cust_123",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.Verify(token)
	assert.ErrorIs(t, err, reviewloop_errors.ErrInvalidToken)

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, &claims{
		CustomerID: "cust_123",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
		},
	})
	token, err = hs512.SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = c.Verify(token)
	assert.ErrorIs(t, err, reviewloop_errors.ErrInvalidToken)
}

func TestCodec_MissingSecretOrCustomer(t *testing.T) {
	_, noSecret := newTestCodec("")
	_, err := noSecret.Issue(dto.TrackingLink{CustomerID: "cust_123"}, time.Hour)
	assert.Error(t, err)

	_, err = noSecret.Verify("anything")
	assert.ErrorIs(t, err, reviewloop_errors.ErrInvalidToken)

	_, c := newTestCodec("s3cret")
	_, err = c.Issue(dto.TrackingLink{}, time.Hour)
	assert.ErrorIs(t, err, reviewloop_errors.ErrInvalidInput)

	_, err = c.Verify("not-a-token")
	assert.ErrorIs(t, err, reviewloop_errors.ErrInvalidToken)
}
