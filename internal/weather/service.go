package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrNoJournal is returned by report queries when the service keeps no journal.
var ErrNoJournal = errors.New("cycle journal not configured")

// Service runs collection cycles: fetch one observation, publish it, record
// the outcome. It keeps no state between cycles.
type Service struct {
	fetcher   Fetcher
	publisher Publisher
	store     Store
	logger    *slog.Logger
	timeout   time.Duration

	now func() time.Time
}

// NewService creates a new Service. store may be nil when no journal is kept;
// timeout bounds a whole cycle and is ignored when <= 0.
func NewService(fetcher Fetcher, publisher Publisher, store Store, timeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		fetcher:   fetcher,
		publisher: publisher,
		store:     store,
		logger:    logger,
		timeout:   timeout,
		now:       time.Now,
	}
}

// RunCycle performs one fetch-then-publish cycle. It never returns an error
// and never panics: every failure is logged and folded into the report so the
// caller can keep scheduling.
func (s *Service) RunCycle(ctx context.Context) CycleReport {
	report := CycleReport{
		ID:        uuid.NewString(),
		StartedAt: s.now(),
	}
	logger := s.logger.With("cycle_id", report.ID)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	err := s.collect(ctx, &report, logger)
	report.FinishedAt = s.now()

	if err != nil {
		report.Outcome = OutcomeFailed
		report.ErrorKind = ErrorKind(err)
		report.Error = err.Error()
		logger.Error("cycle failed",
			"kind", report.ErrorKind,
			"error", err,
			"duration", report.Duration(),
		)
	} else {
		report.Outcome = OutcomePublished
		logger.Info("cycle completed", "duration", report.Duration())
	}

	if s.store != nil {
		if err := s.store.SaveReport(report); err != nil {
			logger.Warn("failed to record cycle", "error", err)
		}
	}
	return report
}

// collect is the guarded body of a cycle; panics become KindInternal errors.
func (s *Service) collect(ctx context.Context, report *CycleReport, logger *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered panic: %v", r)
		}
	}()

	if s.fetcher == nil || s.publisher == nil {
		return errors.New("service is missing a fetcher or publisher")
	}

	obs, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch from %s: %w", s.fetcher.Name(), err)
	}
	report.Observation = &obs

	logger.Debug("observation collected",
		"city", obs.City,
		"timestamp", obs.Timestamp,
		"description", obs.Description,
	)

	if err := s.publisher.Publish(ctx, obs); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// LatestReport delegates to the underlying store.
func (s *Service) LatestReport() (CycleReport, error) {
	if s.store == nil {
		return CycleReport{}, ErrNoJournal
	}
	return s.store.Latest()
}

// RecentReports delegates to the underlying store.
func (s *Service) RecentReports(limit int) ([]CycleReport, error) {
	if s.store == nil {
		return nil, ErrNoJournal
	}
	return s.store.Recent(limit)
}
