package interfaces

import (
	"context"

	"github.com/reviewloop/reviewloop/dto"
)

type EventsPublisher interface {
	PublishEngagementEvent(ctx context.Context, event dto.EngagementEvent) error
	Close() error
}
