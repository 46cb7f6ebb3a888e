package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clinbrief/clinbrief/idgen"
	"github.com/clinbrief/clinbrief/summarize"
)

const (
	// DefaultPageLimit applies when a caller asks for no particular page
	// size; MaxPageLimit caps what a caller may ask for.
	DefaultPageLimit = 10
	MaxPageLimit     = 50

	// conflictRetries bounds how often a state transition re-reads the row
	// after losing a version race.
	conflictRetries = 3
)

// Service drives the report lifecycle: creation with an immediate
// summarization attempt, and retries for pending reports.
type Service struct {
	store   *Store
	invoker *summarize.Invoker
	newID   idgen.Generator
	logger  *slog.Logger
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithIDGenerator replaces the report id generator. Used by tests for
// deterministic ids.
func WithIDGenerator(gen idgen.Generator) ServiceOption {
	return func(s *Service) { s.newID = gen }
}

func NewService(store *Store, invoker *summarize.Invoker, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:   store,
		invoker: invoker,
		newID:   idgen.Prefixed(IDPrefix, idgen.Default),
		logger:  logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create persists a new report from extracted text and attempts
// summarization once. A summarization failure is not an error: the report is
// stored pending and the text is preserved for a later retry.
func (s *Service) Create(ctx context.Context, text, sourceType, ownerID string) (*Report, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoText
	}

	now := time.Now().UTC()
	r := &Report{
		ID:           s.newID(),
		OwnerID:      ownerID,
		SourceType:   sourceType,
		OriginalText: text,
		Status:       StatusPending,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	summary, err := s.invoker.Invoke(ctx, text)
	switch {
	case err == nil:
		r.Status = StatusCompleted
		r.SummaryText = &summary
	case errors.Is(err, summarize.ErrUnavailable):
		s.logger.Warn("storing report without summary", "report_id", r.ID, "error", err)
	default:
		// Invoker guarantees ErrUnavailable wrapping; anything else is a bug.
		return nil, fmt.Errorf("report: unexpected invoker error: %w", err)
	}

	if err := s.store.Insert(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("report created", "report_id", r.ID, "source", sourceType, "status", r.Status)
	return r, nil
}

// Get returns a report by id. Returns ErrNotFound when absent.
func (s *Service) Get(ctx context.Context, id string) (*Report, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	return r, nil
}

// List returns one page of reports newest first, with the total count.
// Page and limit are clamped: page >= 1, limit in [1, 50], default 10.
func (s *Service) List(ctx context.Context, ownerID string, page, limit int) ([]*Report, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return s.store.List(ctx, ownerID, page, limit)
}

// Retry re-attempts summarization for a report. The report is first marked
// pending with any stale summary cleared, then summarized. On failure the
// report stays pending and the failure is surfaced to the caller; the stored
// text is untouched either way. Retrying an already-completed report forces
// a fresh summary.
func (s *Service) Retry(ctx context.Context, id string) (*Report, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	if strings.TrimSpace(r.OriginalText) == "" {
		return nil, ErrNoText
	}

	r, err = s.transition(ctx, id, StatusPending, nil)
	if err != nil {
		return nil, err
	}

	summary, err := s.invoker.Invoke(ctx, r.OriginalText)
	if err != nil {
		s.logger.Warn("retry summarization failed", "report_id", id, "error", err)
		return r, err
	}

	r, err = s.transition(ctx, id, StatusCompleted, &summary)
	if err != nil {
		return nil, err
	}
	s.logger.Info("report summarized on retry", "report_id", id)
	return r, nil
}

// transition applies a status change with optimistic locking, re-reading the
// row and retrying a bounded number of times when a concurrent writer wins.
func (s *Service) transition(ctx context.Context, id string, status Status, summary *string) (*Report, error) {
	for attempt := 0; ; attempt++ {
		r, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, ErrNotFound
		}

		err = s.store.UpdateSummary(ctx, id, r.Version, status, summary)
		if err == nil {
			r.Status = status
			r.SummaryText = summary
			r.Version++
			r.UpdatedAt = time.Now().UTC()
			return r, nil
		}
		if !errors.Is(err, ErrConflict) || attempt >= conflictRetries {
			return nil, err
		}
	}
}
