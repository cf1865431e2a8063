package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/reviewloop/reviewloop/dto"
	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
)

const (
	ExchangeEngagement = "reviewloop-engagement"
	ExchangeDeadLetter = "reviewloop-dead-letter"

	QueueEngagement = "engagement-events"
	DLQEngagement   = QueueEngagement + "-dlq"

	RoutingKeyDeadLetter = "dead-letter"

	EntityTypeCustomer = "CUSTOMER"

	DefaultMessageTTL          = 240 * time.Hour // after TTL message moves to DLQ
	DefaultMaxRetries          = 3
	DefaultPublishTimeout      = 5 * time.Second
	DefaultReconnectBackoff    = time.Second
	DefaultMaxReconnectBackoff = 30 * time.Second
)

type PublisherConfig struct {
	MessageTTL          time.Duration
	MaxRetries          int
	PublishTimeout      time.Duration
	ReconnectBackoff    time.Duration
	MaxReconnectBackoff time.Duration
}

func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		MessageTTL:          DefaultMessageTTL,
		MaxRetries:          DefaultMaxRetries,
		PublishTimeout:      DefaultPublishTimeout,
		ReconnectBackoff:    DefaultReconnectBackoff,
		MaxReconnectBackoff: DefaultMaxReconnectBackoff,
	}
}

// RabbitMQPublisher publishes engagement events on a fanout exchange with
// publisher confirms. Consumers bind their own queues; the default queue and
// its DLQ are declared so nothing is lost before the first consumer exists.
type RabbitMQPublisher struct {
	connection      *amqp091.Connection
	connectionMutex sync.Mutex
	publishChannel  *amqp091.Channel
	publishMutex    sync.Mutex
	url             string
	logger          logger.Logger
	confirms        chan amqp091.Confirmation
	config          PublisherConfig
	closed          chan struct{}
	closeOnce       sync.Once
}

func NewRabbitMQPublisher(rabbitmqURL string, logger logger.Logger, config *PublisherConfig) (*RabbitMQPublisher, error) {
	cfg := DefaultPublisherConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}

	publisher := &RabbitMQPublisher{
		url:    rabbitmqURL,
		logger: logger,
		config: cfg,
		closed: make(chan struct{}),
	}

	if err := publisher.connect(); err != nil {
		return nil, err
	}
	go publisher.handleReconnection()

	return publisher, nil
}

func (r *RabbitMQPublisher) PublishEngagementEvent(ctx context.Context, event dto.EngagementEvent) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishEngagementEvent")
	defer span.Finish()
	tracing.TagComponentPublisher(span)
	tracing.TagTenant(span, event.TenantID)
	tracing.TagEntity(span, event.CustomerID)

	tracingData := tracing.ExtractTextMapCarrier(span.Context())

	message := dto.Event{
		Event: dto.EventDetails{
			Id:         utils.GenerateNanoIDWithPrefix("event", 21),
			EntityId:   event.CustomerID,
			EntityType: EntityTypeCustomer,
			Tenant:     event.TenantID,
			EventType:  event.Event,
			Data:       event,
		},
		Metadata: dto.EventMetadata{
			UberTraceId: tracingData["uber-trace-id"],
			AppSource:   utils.GetAppSourceFromContext(ctx),
			Timestamp:   utils.Now().Format(time.RFC3339),
		},
	}

	tracing.LogObjectAsJson(span, "message", message)
	if err := r.publishMessage(ctx, message); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	span.LogKV("result.published", true)
	return nil
}

func (r *RabbitMQPublisher) publishMessage(ctx context.Context, message interface{}) error {
	var lastErr error
	for attempt := 0; attempt < r.config.MaxRetries; attempt++ {
		lastErr = r.publishWithConfirm(ctx, message)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.logger.Warnf("Publish attempt %d failed: %v", attempt+1, lastErr)
		if attempt < r.config.MaxRetries-1 {
			time.Sleep(time.Millisecond * 100 * time.Duration(attempt+1))
		}
	}

	return errors.Wrap(lastErr, "failed to publish message after all retries")
}

func (r *RabbitMQPublisher) publishWithConfirm(ctx context.Context, message interface{}) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := r.ensureConnectionAndChannel(); err != nil {
		return err
	}

	body, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	err = r.publishChannel.PublishWithContext(ctx,
		ExchangeEngagement,
		"",
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			DeliveryMode: amqp091.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    utils.Now(),
		})
	if err != nil {
		return errors.Wrap(err, "failed to publish message")
	}

	select {
	case confirm := <-r.confirms:
		if !confirm.Ack {
			return errors.New("message was not confirmed by server")
		}
	case <-time.After(r.config.PublishTimeout):
		return errors.New("publish confirmation timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (r *RabbitMQPublisher) connect() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	connection, err := amqp091.Dial(r.url)
	if err != nil {
		return errors.Wrap(err, "failed to connect to RabbitMQ")
	}
	r.connection = connection

	if err := r.setupTopology(); err != nil {
		return errors.Wrap(err, "failed to setup exchanges and queues")
	}
	if err := r.setupPublishChannel(); err != nil {
		return errors.Wrap(err, "failed to setup publish channel")
	}
	return nil
}

func (r *RabbitMQPublisher) setupPublishChannel() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "failed to open publish channel")
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		return errors.Wrap(err, "failed to enable publisher confirms")
	}

	r.confirms = channel.NotifyPublish(make(chan amqp091.Confirmation, 1))
	r.publishChannel = channel
	return nil
}

func (r *RabbitMQPublisher) setupTopology() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "failed to open channel for exchange/queue setup")
	}
	defer channel.Close()

	if err := channel.ExchangeDeclare(ExchangeDeadLetter, "direct", true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "failed to declare dead letter exchange")
	}
	if err := channel.ExchangeDeclare(ExchangeEngagement, "fanout", true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "failed to declare engagement exchange")
	}

	if _, err := channel.QueueDeclare(DLQEngagement, true, false, false, false, nil); err != nil {
		return errors.Wrapf(err, "failed to declare DLQ %s", DLQEngagement)
	}
	if err := channel.QueueBind(DLQEngagement, RoutingKeyDeadLetter, ExchangeDeadLetter, false, nil); err != nil {
		return errors.Wrapf(err, "failed to bind DLQ %s", DLQEngagement)
	}

	args := amqp091.Table{
		"x-dead-letter-exchange":    ExchangeDeadLetter,
		"x-dead-letter-routing-key": RoutingKeyDeadLetter,
		"x-message-ttl":             r.config.MessageTTL.Milliseconds(),
	}
	if _, err := channel.QueueDeclare(QueueEngagement, true, false, false, false, args); err != nil {
		return errors.Wrapf(err, "failed to declare queue %s", QueueEngagement)
	}
	if err := channel.QueueBind(QueueEngagement, "", ExchangeEngagement, false, nil); err != nil {
		return errors.Wrapf(err, "failed to bind queue %s to exchange %s", QueueEngagement, ExchangeEngagement)
	}
	return nil
}

func (r *RabbitMQPublisher) ensureConnectionAndChannel() error {
	if r.connection == nil || r.connection.IsClosed() {
		if err := r.connect(); err != nil {
			return errors.Wrap(err, "failed to establish connection")
		}
	}
	if r.publishChannel == nil || r.publishChannel.IsClosed() {
		if err := r.setupPublishChannel(); err != nil {
			return errors.Wrap(err, "failed to establish channel")
		}
	}
	return nil
}

// handleReconnection runs for the publisher's lifetime and redials with
// exponential backoff whenever the broker drops the connection.
func (r *RabbitMQPublisher) handleReconnection() {
	for {
		r.connectionMutex.Lock()
		notifyClose := r.connection.NotifyClose(make(chan *amqp091.Error, 1))
		r.connectionMutex.Unlock()

		select {
		case <-r.closed:
			return
		case err := <-notifyClose:
			if err == nil {
				// graceful close
				return
			}
			r.logger.Warnf("RabbitMQ connection closed: %v, attempting to reconnect", err)
		}

		backoff := r.config.ReconnectBackoff
		for {
			if err := r.connect(); err == nil {
				r.logger.Info("Successfully reconnected to RabbitMQ")
				break
			} else {
				r.logger.Errorf("Failed to reconnect: %v, retrying in %v", err, backoff)
			}

			select {
			case <-r.closed:
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > r.config.MaxReconnectBackoff {
				backoff = r.config.MaxReconnectBackoff
			}
		}
	}
}

// Close gracefully shuts down the publisher
func (r *RabbitMQPublisher) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })

	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	var err error
	if r.publishChannel != nil {
		if err = r.publishChannel.Close(); err != nil {
			r.logger.Errorf("Error closing publish channel: %v", err)
		}
	}
	if r.connection != nil {
		if closeErr := r.connection.Close(); closeErr != nil {
			r.logger.Errorf("Error closing connection: %v", closeErr)
			if err == nil {
				err = closeErr
			}
		}
	}
	return err
}
