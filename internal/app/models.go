package app

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"

	"lesson-scheduler/internal/schedule"
)

const (
	StatusScheduled = "scheduled"
	StatusCancelled = "cancelled"
)

// App holds the collaborators shared by all handlers.
type App struct {
	Repo     Repository
	Cache    *BusyCache
	Google   *GoogleCalendarConfig
	Logger   *zap.Logger
	Location *time.Location

	BusyQueryConcurrency int
	MaxOccurrences       int
	WorkdayStart         schedule.TimeOfDay
	WorkdayEnd           schedule.TimeOfDay

	// googleService overrides how the calendar client is built from a
	// caller's token.
	googleService func(context.Context, *oauth2.Token) (*calendar.Service, error)
}

type Lesson struct {
	ID              string     `json:"id"`
	TutorID         string     `json:"tutor_id"`
	StudentID       string     `json:"student_id"`
	SubjectID       string     `json:"subject_id"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Notes           string     `json:"notes,omitempty"`
	RecurrenceTag   string     `json:"recurrence_tag,omitempty"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

func (l Lesson) Interval() schedule.Interval {
	return schedule.Interval{Start: l.ScheduledAt, End: l.ScheduledAt.Add(time.Duration(l.DurationMinutes) * time.Minute)}
}

type Session struct {
	ID              string            `json:"id"`
	TutorID         string            `json:"tutor_id"`
	ScheduledAt     time.Time         `json:"scheduled_at"`
	DurationMinutes int               `json:"duration_minutes"`
	Notes           string            `json:"notes,omitempty"`
	RecurrenceTag   string            `json:"recurrence_tag,omitempty"`
	Status          string            `json:"status"`
	Members         []schedule.Member `json:"members"`
	CreatedAt       time.Time         `json:"created_at,omitempty"`
}
