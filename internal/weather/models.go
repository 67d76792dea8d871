package weather

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultDescription is used when the provider reports no condition text.
const DefaultDescription = "N/A"

// Location is the fixed place the collector samples.
type Location struct {
	City string  `json:"city"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Key returns a canonical string key for this location.
func (l Location) Key() string {
	return fmt.Sprintf("%s:%.4f,%.4f", l.City, l.Lat, l.Lon)
}

// Observation is one normalized weather sample. It is built in a single step
// by a Fetcher and handed to a Publisher by value.
//
// Nullable readings are pointers and encode as JSON null; no key is ever
// omitted from the encoded form.
type Observation struct {
	Timestamp     time.Time `json:"timestamp"` // provider observation time, host local zone
	Temperature   *float64  `json:"temperature"`
	Humidity      *int      `json:"humidity"`
	Pressure      *int      `json:"pressure"`
	WindSpeed     *float64  `json:"windspeed"`
	WindDirection int       `json:"winddirection"`
	Description   string    `json:"description"`
	City          string    `json:"city"`
}

// Equal reports whether two observations carry the same values.
func (o Observation) Equal(other Observation) bool {
	return o.Timestamp.Equal(other.Timestamp) &&
		equalPtr(o.Temperature, other.Temperature) &&
		equalPtr(o.Humidity, other.Humidity) &&
		equalPtr(o.Pressure, other.Pressure) &&
		equalPtr(o.WindSpeed, other.WindSpeed) &&
		o.WindDirection == other.WindDirection &&
		o.Description == other.Description &&
		o.City == other.City
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// EncodeObservation renders the message body published to the queue.
func EncodeObservation(o Observation) ([]byte, error) {
	o.Timestamp = o.Timestamp.Truncate(time.Second)
	body, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("encode observation: %w", err)
	}
	return body, nil
}

// DecodeObservation is the inverse of EncodeObservation. Unknown keys are
// rejected so that a consumer notices format drift.
func DecodeObservation(body []byte) (Observation, error) {
	var o Observation
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		return Observation{}, fmt.Errorf("decode observation: %w", err)
	}
	return o, nil
}

// Outcome is the terminal state of one cycle.
type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeFailed    Outcome = "failed"
)

// CycleReport describes how a single fetch-then-publish cycle ended.
type CycleReport struct {
	ID          string       `json:"id"`
	StartedAt   time.Time    `json:"startedAt"`
	FinishedAt  time.Time    `json:"finishedAt"`
	Outcome     Outcome      `json:"outcome"`
	ErrorKind   Kind         `json:"errorKind,omitempty"`
	Error       string       `json:"error,omitempty"`
	Observation *Observation `json:"observation,omitempty"` // set whenever the fetch succeeded
}

// Duration is how long the cycle took.
func (r CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
