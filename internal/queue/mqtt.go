package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/i474232898/weather-collector/internal/weather"
)

// MQTTPublisher publishes observations over MQTT with QoS 1. The client keeps
// a persistent broker session (clean session off) under a stable client id,
// which is the MQTT counterpart of a durable queue.
type MQTTPublisher struct {
	broker    string
	topic     string
	clientID  string
	timeout   time.Duration
	logger    *slog.Logger
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

func NewMQTTPublisher(broker, topic, clientID string, timeout time.Duration, logger *slog.Logger) *MQTTPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MQTTPublisher{
		broker:    broker,
		topic:     topic,
		clientID:  clientID,
		timeout:   timeout,
		logger:    logger.With("transport", "mqtt", "topic", topic),
		newClient: mqtt.NewClient,
	}
}

func (p *MQTTPublisher) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.broker)
	opts.SetClientID(p.clientID)

	// Session settings
	opts.SetCleanSession(false)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(p.timeout)
	opts.SetWriteTimeout(p.timeout)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	return opts
}

// Publish connects, publishes obs and disconnects.
func (p *MQTTPublisher) Publish(ctx context.Context, obs weather.Observation) error {
	body, err := weather.EncodeObservation(obs)
	if err != nil {
		return fmt.Errorf("%w: %w", weather.ErrBroker, err)
	}

	client := p.newClient(p.options())
	if err := wait(ctx, client.Connect(), p.timeout); err != nil {
		// The handshake may still complete after we stop waiting.
		client.Disconnect(0)
		return fmt.Errorf("%w: mqtt connect: %w", weather.ErrBroker, err)
	}
	defer client.Disconnect(250)

	if err := wait(ctx, client.Publish(p.topic, 1, false, body), p.timeout); err != nil {
		return fmt.Errorf("%w: publish to %s: %w", weather.ErrBroker, p.topic, err)
	}

	p.logger.Info("observation published", "bytes", len(body))
	return nil
}

// wait blocks until token completes, ctx is done or timeout elapses.
func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	}
}
