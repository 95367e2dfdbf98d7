package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stage is the position of a submission in the booking pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StageValidating
	StageExpanding
	StageConflictChecking
	StageSubmitting
	StageCompleted
	StageFailed
)

var stageNames = [...]string{"idle", "validating", "expanding", "conflict_checking", "submitting", "completed", "failed"}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Options struct {
	Location *time.Location
	// BusyQueryConcurrency > 1 fetches busy slots for all dates concurrently.
	BusyQueryConcurrency int
	MaxOccurrences       int
	Logger               *zap.Logger
}

// Engine turns a BookingRequest into persisted lessons. It keeps no state
// between calls.
type Engine struct {
	checker        *Checker
	submitter      *Submitter
	loc            *time.Location
	maxOccurrences int
	logger         *zap.Logger
	newTag         func() string
}

func NewEngine(busy BusySlotProvider, store LessonStore, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	maxOcc := opts.MaxOccurrences
	if maxOcc <= 0 {
		maxOcc = DefaultMaxOccurrences
	}
	return &Engine{
		checker:        &Checker{Provider: busy, Concurrency: opts.BusyQueryConcurrency, Logger: logger},
		submitter:      &Submitter{Store: store, Logger: logger},
		loc:            loc,
		maxOccurrences: maxOcc,
		logger:         logger,
		newTag:         uuid.NewString,
	}
}

// Plan is a checked but unsubmitted booking.
type Plan struct {
	Dates           []time.Time `json:"dates"`
	Candidates      []Candidate `json:"bookings"`
	UnverifiedDates []time.Time `json:"unverified_dates,omitempty"`
}

// Summary is the outcome of Book. On a persistence failure Created still
// lists the bookings written before the failing one.
type Summary struct {
	Stage           Stage       `json:"stage"`
	Created         []Created   `json:"created"`
	Total           int         `json:"total"`
	RecurrenceTag   string      `json:"recurrence_tag,omitempty"`
	Dates           []time.Time `json:"dates"`
	UnverifiedDates []time.Time `json:"unverified_dates,omitempty"`
}

// Plan validates, expands and conflict-checks req without writing anything.
func (e *Engine) Plan(ctx context.Context, req BookingRequest) (Plan, error) {
	plan, _, err := e.plan(ctx, req)
	return plan, err
}

// Book runs the whole pipeline. Validation and conflict errors leave the
// calendar untouched; a *PersistenceError may leave earlier bookings written.
func (e *Engine) Book(ctx context.Context, req BookingRequest) (Summary, error) {
	plan, stage, err := e.plan(ctx, req)
	if err != nil {
		e.logger.Info("booking rejected", zap.Stringer("stage", stage), zap.Error(err))
		return Summary{Stage: StageFailed, Dates: plan.Dates}, err
	}

	sum := Summary{Total: len(plan.Candidates), Dates: plan.Dates, UnverifiedDates: plan.UnverifiedDates}
	if req.Recurrence != RecurrenceNone && req.Edit == nil {
		sum.RecurrenceTag = e.newTag()
	}

	e.enter(StageSubmitting, len(plan.Candidates))
	created, err := e.submitter.Submit(ctx, plan.Candidates, req.Edit, sum.RecurrenceTag)
	sum.Created = created
	if err != nil {
		sum.Stage = StageFailed
		return sum, err
	}
	sum.Stage = StageCompleted
	e.logger.Info("booking completed", zap.Int("created", len(created)), zap.Int("dates", len(plan.Dates)))
	return sum, nil
}

func (e *Engine) plan(ctx context.Context, req BookingRequest) (Plan, Stage, error) {
	var plan Plan

	e.enter(StageValidating, 0)
	if err := req.Validate(); err != nil {
		return plan, StageValidating, err
	}

	e.enter(StageExpanding, 0)
	dates, err := req.OccurrenceDates(e.maxOccurrences)
	if err != nil {
		return plan, StageExpanding, err
	}
	plan.Dates = dates
	candidates, err := ExpandSelections(req.Students, dates, LessonTemplate{
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		Combined:        req.CombinedSession,
		Location:        e.loc,
	})
	if err != nil {
		return plan, StageExpanding, err
	}

	e.enter(StageConflictChecking, len(candidates))
	report, err := e.checker.Check(ctx, candidates, req.Edit)
	if err != nil {
		return plan, StageConflictChecking, err
	}
	plan.Candidates = candidates
	plan.UnverifiedDates = report.UnverifiedDates
	return plan, StageConflictChecking, nil
}

func (e *Engine) enter(s Stage, candidates int) {
	e.logger.Debug("booking stage", zap.Stringer("stage", s), zap.Int("candidates", candidates))
}
