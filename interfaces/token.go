package interfaces

import (
	"time"

	"github.com/reviewloop/reviewloop/dto"
)

type TokenCodec interface {
	// Issue signs a link for the customer; expiry <= 0 uses the default
	Issue(link dto.TrackingLink, expiry time.Duration) (string, error)
	Verify(token string) (*dto.TrackingLink, error)
}
