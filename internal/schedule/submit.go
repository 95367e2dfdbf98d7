package schedule

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Created is one booking accepted by the store.
type Created struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Candidate Candidate `json:"booking"`
}

// Submitter writes candidates one at a time and stops at the first failure.
// Writes made before the failure stay in place.
type Submitter struct {
	Store  LessonStore
	Logger *zap.Logger
}

func (s *Submitter) Submit(ctx context.Context, candidates []Candidate, edit *EditTarget, recurrenceTag string) ([]Created, error) {
	if edit != nil {
		return s.update(ctx, candidates, edit)
	}

	created := make([]Created, 0, len(candidates))
	for i, cand := range candidates {
		id, err := s.create(ctx, cand, recurrenceTag)
		if err != nil {
			s.logger().Error("booking write failed",
				zap.Int("index", i), zap.Int("created", len(created)), zap.Int("total", len(candidates)),
				zap.String("kind", cand.Kind()), zap.Time("scheduled_at", cand.Interval().Start), zap.Error(err))
			return created, &PersistenceError{Index: i, Candidate: cand, Created: len(created), Total: len(candidates), Err: err}
		}
		created = append(created, Created{ID: id, Kind: cand.Kind(), Candidate: cand})
	}
	return created, nil
}

func (s *Submitter) create(ctx context.Context, cand Candidate, recurrenceTag string) (string, error) {
	switch c := cand.(type) {
	case IndividualLesson:
		return s.Store.CreateLesson(ctx, c, recurrenceTag)
	case Session:
		return s.Store.CreateSession(ctx, c, recurrenceTag)
	default:
		return "", fmt.Errorf("unsupported booking type %T", cand)
	}
}

func (s *Submitter) update(ctx context.Context, candidates []Candidate, edit *EditTarget) ([]Created, error) {
	if len(candidates) != 1 {
		return nil, NewValidationError(errors.New("editing a lesson needs exactly one booking"),
			FieldError{Field: "lesson", Error: fmt.Sprintf("got %d bookings", len(candidates))})
	}
	l, ok := candidates[0].(IndividualLesson)
	if !ok {
		return nil, NewValidationError(errors.New("only individual lessons can be edited"))
	}
	if err := s.Store.UpdateLesson(ctx, edit.LessonID, l.ScheduledAt, l.DurationMinutes, l.Notes); err != nil {
		s.logger().Error("lesson update failed", zap.String("lesson_id", edit.LessonID), zap.Error(err))
		return nil, &PersistenceError{Index: 0, Candidate: l, Created: 0, Total: 1, Err: err}
	}
	return []Created{{ID: edit.LessonID, Kind: l.Kind(), Candidate: l}}, nil
}

func (s *Submitter) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
