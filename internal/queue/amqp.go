package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/i474232898/weather-collector/internal/weather"
)

// amqpChannel is the subset of *amqp.Channel the publisher needs.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// amqpConnection is the subset of *amqp.Connection the publisher needs.
type amqpConnection interface {
	Channel() (amqpChannel, error)
	Close() error
}

type amqpDialer func(url string, cfg amqp.Config) (amqpConnection, error)

// connection adapts *amqp.Connection to amqpConnection.
type connection struct {
	*amqp.Connection
}

func (c connection) Channel() (amqpChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialAMQP(url string, cfg amqp.Config) (amqpConnection, error) {
	conn, err := amqp.DialConfig(url, cfg)
	if err != nil {
		return nil, err
	}
	return connection{conn}, nil
}

// AMQPPublisher publishes observations to a durable RabbitMQ queue. Each call
// opens its own connection and closes it before returning.
type AMQPPublisher struct {
	url     string
	queue   string
	timeout time.Duration
	logger  *slog.Logger
	dial    amqpDialer
}

func NewAMQPPublisher(url, queue string, timeout time.Duration, logger *slog.Logger) *AMQPPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPPublisher{
		url:     url,
		queue:   queue,
		timeout: timeout,
		logger:  logger.With("transport", "amqp", "queue", queue),
		dial:    dialAMQP,
	}
}

// Publish declares the durable queue and publishes obs as a persistent
// message on the default exchange.
func (p *AMQPPublisher) Publish(ctx context.Context, obs weather.Observation) error {
	body, err := weather.EncodeObservation(obs)
	if err != nil {
		return fmt.Errorf("%w: %w", weather.ErrBroker, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName("weather-collector")
	cfg := amqp.Config{
		Properties: props,
		Heartbeat:  10 * time.Second,
		Locale:     "en_US",
		Dial:       amqp.DefaultDial(p.dialTimeout(ctx)),
	}

	conn, err := p.dial(p.url, cfg)
	if err != nil {
		return fmt.Errorf("%w: rabbitmq connect failed: %w", weather.ErrBroker, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			p.logger.Debug("rabbit connection close failed", "error", cerr)
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("%w: rabbitmq channel open failed: %w", weather.ErrBroker, err)
	}
	defer func() {
		if cerr := ch.Close(); cerr != nil {
			p.logger.Debug("rabbit channel close failed", "error", cerr)
		}
	}()

	if err := declareQueue(ch, p.queue); err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("%w: rabbitmq publish failed: %w", weather.ErrBroker, err)
	}

	p.logger.Info("observation published", "message_id", msg.MessageId, "bytes", len(body))
	return nil
}

// declareQueue makes sure the durable queue exists. Declaring an existing
// queue with the same properties is a no-op on the broker.
func declareQueue(ch amqpChannel, name string) error {
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("%w: rabbitmq queue declare failed: %w", weather.ErrBroker, err)
	}
	return nil
}

// dialTimeout is the time left before ctx expires, capped by the publisher
// timeout.
func (p *AMQPPublisher) dialTimeout(ctx context.Context) time.Duration {
	timeout := p.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	return timeout
}
