package interfaces

import (
	"context"

	"github.com/reviewloop/reviewloop/dto"
)

type Mailer interface {
	Send(ctx context.Context, email dto.OutboundEmail) error
}

type Crypto interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
