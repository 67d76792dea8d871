package store

import (
	"errors"
	"sync"

	"github.com/i474232898/weather-collector/internal/weather"
)

var (
	// ErrNotFound is returned when no cycle has been recorded yet.
	ErrNotFound = errors.New("no cycle reports recorded")
)

// MemoryStore is a concurrency-safe in-memory journal of cycle reports.
type MemoryStore struct {
	mu sync.RWMutex

	// oldest first
	reports []weather.CycleReport

	maxHistory int // max number of reports kept (0 = unlimited)
}

// NewMemoryStore creates a new MemoryStore.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
	}
}

// SaveReport appends a report and enforces retention.
func (s *MemoryStore) SaveReport(report weather.CycleReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = append(s.reports, report)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.reports) > s.maxHistory {
		over := len(s.reports) - s.maxHistory
		s.reports = append([]weather.CycleReport(nil), s.reports[over:]...)
	}
	return nil
}

// Latest returns the most recent report.
func (s *MemoryStore) Latest() (weather.CycleReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.reports) == 0 {
		return weather.CycleReport{}, ErrNotFound
	}
	return s.reports[len(s.reports)-1], nil
}

// Recent returns up to limit reports, newest first.
func (s *MemoryStore) Recent(limit int) ([]weather.CycleReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.reports) == 0 {
		return nil, ErrNotFound
	}
	if limit <= 0 || limit > len(s.reports) {
		limit = len(s.reports)
	}

	result := make([]weather.CycleReport, 0, limit)
	for i := len(s.reports) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.reports[i])
	}
	return result, nil
}
