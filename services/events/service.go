package events

import (
	"context"

	"github.com/reviewloop/reviewloop/dto"
	"github.com/reviewloop/reviewloop/interfaces"
	"github.com/reviewloop/reviewloop/internal/logger"
)

type Config struct {
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

// NewEventsPublisher connects to the broker, or returns a publisher that only
// logs when no broker is configured.
func NewEventsPublisher(cfg Config, log logger.Logger, publisherConfig *PublisherConfig) (interfaces.EventsPublisher, error) {
	if cfg.RabbitMQURL == "" {
		log.Warn("RABBITMQ_URL not set, engagement events will not be published")
		return NewNoopPublisher(log), nil
	}
	publisher, err := NewRabbitMQPublisher(cfg.RabbitMQURL, log, publisherConfig)
	if err != nil {
		return nil, err
	}
	return publisher, nil
}

type noopPublisher struct {
	log logger.Logger
}

func NewNoopPublisher(log logger.Logger) interfaces.EventsPublisher {
	return &noopPublisher{log: log}
}

func (p *noopPublisher) PublishEngagementEvent(ctx context.Context, event dto.EngagementEvent) error {
	p.log.Debugf("engagement event %s for customer %s not published", event.Event, event.CustomerID)
	return nil
}

func (p *noopPublisher) Close() error {
	return nil
}
