// Package queue hands observations to the message broker.
package queue

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/weather-collector/internal/weather"
)

// Options configures the publisher returned by New.
type Options struct {
	URL          string
	Queue        string
	Timeout      time.Duration
	MQTTClientID string
}

// New returns a publisher for the transport named by the URL scheme.
func New(opts Options, logger *slog.Logger) (weather.Publisher, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid broker url: %w", err)
	}
	if opts.Queue == "" {
		return nil, fmt.Errorf("queue name is required")
	}

	switch strings.ToLower(u.Scheme) {
	case "amqp", "amqps":
		return NewAMQPPublisher(opts.URL, opts.Queue, opts.Timeout, logger), nil
	case "mqtt", "mqtts", "tcp", "ssl", "tls", "ws", "wss":
		clientID := opts.MQTTClientID
		if clientID == "" {
			clientID = "weather-collector"
		}
		return NewMQTTPublisher(opts.URL, opts.Queue, clientID, opts.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
}
