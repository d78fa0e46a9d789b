package api

import (
	"context"

	"claimscan/internal/attempts"
)

// AttemptReader abstracts attempt persistence interactions needed for API queries.
type AttemptReader interface {
	List(ctx context.Context, limit int, statuses ...attempts.Status) ([]*attempts.Attempt, error)
	GetByID(ctx context.Context, id string) (*attempts.Attempt, error)
	Stats(ctx context.Context) (map[attempts.Status]int, error)
	Clear(ctx context.Context) (int64, error)
}

// AttemptService exposes attempt history operations returning API DTOs.
type AttemptService struct {
	store AttemptReader
}

// NewAttemptService constructs an AttemptService around the provided reader.
func NewAttemptService(store AttemptReader) *AttemptService {
	if store == nil {
		return nil
	}
	return &AttemptService{store: store}
}

// List returns attempts newest first, filtered by status.
func (s *AttemptService) List(ctx context.Context, limit int, statuses ...attempts.Status) ([]Attempt, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	list, err := s.store.List(ctx, limit, statuses...)
	if err != nil {
		return nil, err
	}
	return FromAttempts(list), nil
}

// Describe fetches a single attempt. A nil result means not found.
func (s *AttemptService) Describe(ctx context.Context, id string) (*Attempt, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	attempt, err := s.store.GetByID(ctx, id)
	if err != nil || attempt == nil {
		return nil, err
	}
	dto := FromAttempt(attempt)
	return &dto, nil
}

// Stats returns attempt counts keyed by status string.
func (s *AttemptService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeAttemptStats(stats), nil
}

// Clear removes the recorded history.
func (s *AttemptService) Clear(ctx context.Context) (int64, error) {
	if s == nil || s.store == nil {
		return 0, nil
	}
	return s.store.Clear(ctx)
}
