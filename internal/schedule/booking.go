package schedule

import (
	"context"
	"time"
)

// StudentSelection is one selected student and the subjects chosen for them,
// in selection order.
type StudentSelection struct {
	StudentID string   `json:"student_id"`
	Subjects  []string `json:"subject_ids"`
}

type Member struct {
	StudentID string `json:"student_id"`
	SubjectID string `json:"subject_id"`
}

// Candidate is a fully specified booking that has not been persisted yet:
// either an IndividualLesson or a Session.
type Candidate interface {
	Interval() Interval
	Kind() string
}

type IndividualLesson struct {
	StudentID       string    `json:"student_id"`
	SubjectID       string    `json:"subject_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Notes           string    `json:"notes,omitempty"`
}

func (l IndividualLesson) Interval() Interval {
	return Interval{Start: l.ScheduledAt, End: l.ScheduledAt.Add(time.Duration(l.DurationMinutes) * time.Minute)}
}

func (IndividualLesson) Kind() string { return "lesson" }

// Session is one calendar entry shared by several student/subject pairs.
type Session struct {
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Notes           string    `json:"notes,omitempty"`
	Members         []Member  `json:"members"`
}

func (s Session) Interval() Interval {
	return Interval{Start: s.ScheduledAt, End: s.ScheduledAt.Add(time.Duration(s.DurationMinutes) * time.Minute)}
}

func (Session) Kind() string { return "session" }

// BusySlot is a committed interval on the tutor's calendar. LessonID is set
// when the slot belongs to a single lesson the engine may be editing.
type BusySlot struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	LessonID string    `json:"lesson_id,omitempty"`
}

func (b BusySlot) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// BusySlotProvider returns the busy slots of one calendar day in the business zone.
type BusySlotProvider interface {
	BusySlots(ctx context.Context, date time.Time) ([]BusySlot, error)
}

// LessonStore persists bookings. recurrenceTag is empty for one-off bookings.
type LessonStore interface {
	CreateLesson(ctx context.Context, l IndividualLesson, recurrenceTag string) (string, error)
	CreateSession(ctx context.Context, s Session, recurrenceTag string) (string, error)
	UpdateLesson(ctx context.Context, lessonID string, scheduledAt time.Time, durationMinutes int, notes string) error
}

// EditTarget identifies the lesson being moved in edit mode. Original is its
// current interval, used to recognise untagged busy slots.
type EditTarget struct {
	LessonID string
	Original Interval
}

// skips reports whether slot is the edited lesson itself.
func (e *EditTarget) skips(slot BusySlot) bool {
	if e == nil {
		return false
	}
	if slot.LessonID != "" {
		return slot.LessonID == e.LessonID
	}
	return !e.Original.Start.IsZero() && slot.Interval().Equal(e.Original)
}
