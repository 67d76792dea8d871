package weather

import (
	"context"
)

// Fetcher retrieves the current observation for the configured location.
// Failures wrap ErrUpstream or ErrParse.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) (Observation, error)
}

// Publisher hands one observation to the broker. Failures wrap ErrBroker.
type Publisher interface {
	Publish(ctx context.Context, obs Observation) error
}

// Store is the journal of finished cycles (in-memory or persistent).
type Store interface {
	SaveReport(report CycleReport) error
	Latest() (CycleReport, error)
	Recent(limit int) ([]CycleReport, error)
}
