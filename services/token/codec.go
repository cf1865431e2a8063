package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/reviewloop/reviewloop/dto"
	"github.com/reviewloop/reviewloop/interfaces"
	reviewloop_errors "github.com/reviewloop/reviewloop/internal/errors"
	"github.com/reviewloop/reviewloop/internal/utils"
)

const DefaultExpiry = 7 * 24 * time.Hour

type claims struct {
	CustomerID          string `json:"cid"`
	DestinationOverride string `json:"url,omitempty"`
	ProgramID           string `json:"pid,omitempty"`
	StepID              string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

type codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec returns an HMAC-SHA256 codec. A nil clock uses the wall clock.
func NewCodec(secret string, clock func() time.Time) interfaces.TokenCodec {
	if clock == nil {
		clock = utils.Now
	}
	return &codec{secret: []byte(secret), now: clock}
}

func (c *codec) Issue(link dto.TrackingLink, expiry time.Duration) (string, error) {
	if len(c.secret) == 0 {
		return "", errors.New("tracking token secret is not configured")
	}
	if link.CustomerID == "" {
		return "", errors.Wrap(reviewloop_errors.ErrInvalidInput, "customer id is required")
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}

	issuedAt := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		CustomerID:          link.CustomerID,
		DestinationOverride: link.DestinationOverride,
		ProgramID:           link.ProgramID,
		StepID:              link.StepID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(expiry)),
		},
	})
	return token.SignedString(c.secret)
}

// Verify fails with ErrTokenExpired for an authentic token past its expiry and
// with ErrInvalidToken for everything else.
func (c *codec) Verify(tokenString string) (*dto.TrackingLink, error) {
	if len(c.secret) == 0 || tokenString == "" {
		return nil, reviewloop_errors.ErrInvalidToken
	}

	parsed := &claims{}
	token, err := jwt.ParseWithClaims(tokenString, parsed, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, reviewloop_errors.ErrTokenExpired
		}
		return nil, errors.Wrap(reviewloop_errors.ErrInvalidToken, err.Error())
	}
	if !token.Valid || parsed.CustomerID == "" {
		return nil, reviewloop_errors.ErrInvalidToken
	}

	return &dto.TrackingLink{
		CustomerID:          parsed.CustomerID,
		DestinationOverride: parsed.DestinationOverride,
		ProgramID:           parsed.ProgramID,
		StepID:              parsed.StepID,
		ExpiresAt:           parsed.ExpiresAt.Time,
	}, nil
}
