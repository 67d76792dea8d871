package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-collector/internal/weather"
)

// HTTPClientConfig bundles the HTTP client and the guards around it.
type HTTPClientConfig struct {
	Client *http.Client
	// Limiter caps outbound calls to stay inside the provider quota. Optional.
	Limiter *rate.Limiter
	// MaxBodyBytes bounds how much of a response is read.
	MaxBodyBytes int64
}

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errUnexpected   = errors.New("unexpected status code")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

const (
	defaultMaxBodyBytes = 1 << 20
	maxBreakerTimeout   = 30 * time.Minute
)

// breakerTimeout is how long an open breaker waits before letting one call
// through. It stays below half the cycle interval so the next scheduled cycle
// always reaches the provider again.
func breakerTimeout(interval time.Duration) time.Duration {
	if interval <= 0 {
		return maxBreakerTimeout
	}
	return min(interval/2, maxBreakerTimeout)
}

// newCircuitBreaker returns the breaker used for a provider. It opens after
// consecutive failures so a dead provider is not called on every attempt
// inside one interval.
func newCircuitBreaker(name string, openTimeout time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// doRequest executes a single attempt through the circuit breaker and returns
// the response body. Every failure wraps weather.ErrUpstream; there are no
// retries, the next scheduled cycle is the retry.
func doRequest(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) ([]byte, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("%w: %w", weather.ErrUpstream, errNoHTTPClient)
	}

	if cfg.Limiter != nil {
		if err := cfg.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait canceled: %w", weather.ErrUpstream, err)
		}
	}

	req, err := buildRequest()
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", weather.ErrUpstream, err)
	}
	req = req.WithContext(ctx)

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := cfg.Client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, errRateLimited
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if readErr != nil {
			return nil, fmt.Errorf("read body: %w", readErr)
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w: %v", weather.ErrUpstream, errCircuitOpen, err)
		}
		return nil, fmt.Errorf("%w: %w", weather.ErrUpstream, err)
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected result type from circuit breaker", weather.ErrUpstream)
	}
	return body, nil
}
