package schedule

import (
	"errors"
	"fmt"
	"time"
)

const DefaultMaxOccurrences = 104

// BookingRequest is one tutor submission, built once from user input and
// passed by value through validation, expansion, checking and submission.
type BookingRequest struct {
	Students        []StudentSelection
	Dates           []time.Time
	Time            TimeOfDay
	DurationMinutes int
	Recurrence      Recurrence
	RecurrenceEnd   *time.Time
	// Occurrences caps a repeating series; required when RecurrenceEnd is nil.
	Occurrences     int
	CombinedSession bool
	Notes           string
	// Edit is set when an existing lesson is being moved.
	Edit *EditTarget
}

// Validate checks the request before anything is expanded or queried.
func (r BookingRequest) Validate() error {
	flds := selectionFields(r.Students, r.Dates, r.DurationMinutes)
	if !r.Time.Valid() {
		flds = append(flds, FieldError{Field: "time", Error: "hour must be 0-23 and minute 0-59"})
	}

	if r.Recurrence != RecurrenceNone {
		if len(uniqueDates(r.Dates)) > 1 {
			flds = append(flds, FieldError{Field: "dates", Error: "pick a single start date for a repeating lesson"})
		}
		if r.RecurrenceEnd == nil && r.Occurrences <= 0 {
			flds = append(flds, FieldError{Field: "recurrence_end_date", Error: ErrUnboundedRecurrence.Error()})
		}
		if r.RecurrenceEnd != nil && len(r.Dates) > 0 && DateOnly(*r.RecurrenceEnd).Before(DateOnly(r.Dates[0])) {
			flds = append(flds, FieldError{Field: "recurrence_end_date", Error: "must not be before the first date"})
		}
		if r.Occurrences < 0 {
			flds = append(flds, FieldError{Field: "occurrences", Error: "must not be negative"})
		}
	}

	if r.Edit != nil {
		if r.Edit.LessonID == "" {
			flds = append(flds, FieldError{Field: "lesson_id", Error: "is required when editing"})
		}
		if len(r.Students) != 1 || len(r.Students[0].Subjects) != 1 {
			flds = append(flds, FieldError{Field: "students", Error: "an edited lesson has exactly one student and one subject"})
		}
		if len(uniqueDates(r.Dates)) != 1 {
			flds = append(flds, FieldError{Field: "dates", Error: "an edited lesson has exactly one date"})
		}
		if r.Recurrence != RecurrenceNone {
			flds = append(flds, FieldError{Field: "recurrence", Error: "an edited lesson cannot repeat"})
		}
	}

	if len(flds) > 0 {
		return NewValidationError(errors.New("invalid booking request"), flds...)
	}
	return nil
}

// OccurrenceDates returns the dates the request books: the selected dates when
// the lesson does not repeat, otherwise the series anchored on the first date.
func (r BookingRequest) OccurrenceDates(maxOccurrences int) ([]time.Time, error) {
	if r.Recurrence == RecurrenceNone {
		return uniqueDates(r.Dates), nil
	}
	if len(r.Dates) == 0 {
		return nil, NewValidationError(errors.New("invalid booking request"),
			FieldError{Field: "dates", Error: "select at least one date"})
	}
	if r.RecurrenceEnd == nil && r.Occurrences <= 0 {
		return nil, NewValidationError(ErrUnboundedRecurrence,
			FieldError{Field: "recurrence_end_date", Error: ErrUnboundedRecurrence.Error()})
	}
	limit := r.Occurrences
	if maxOccurrences > 0 && (limit <= 0 || limit > maxOccurrences) {
		// One past the maximum is enough to reject the series.
		limit = maxOccurrences + 1
	}
	dates, err := ExpandRecurrence(r.Dates[0], r.Recurrence, r.RecurrenceEnd, limit)
	if err != nil {
		return nil, NewValidationError(err, FieldError{Field: "recurrence", Error: err.Error()})
	}
	if maxOccurrences > 0 && len(dates) > maxOccurrences {
		return nil, NewValidationError(errors.New("too many occurrences"), FieldError{
			Field: "recurrence_end_date",
			Error: fmt.Sprintf("series has more than %d occurrences", maxOccurrences),
		})
	}
	return dates, nil
}
