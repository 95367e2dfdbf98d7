package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// LessonTemplate is what every candidate of one request shares.
type LessonTemplate struct {
	Time            TimeOfDay
	DurationMinutes int
	Notes           string
	Combined        bool
	Location        *time.Location
}

// ExpandSelections turns the selection into candidate bookings ordered by date,
// then student selection order, then subject order. In combined mode every date
// yields one Session holding all student/subject pairs, unless there is only a
// single pair, which stays an IndividualLesson.
func ExpandSelections(selections []StudentSelection, dates []time.Time, tpl LessonTemplate) ([]Candidate, error) {
	if err := validateSelections(selections, dates, tpl.DurationMinutes); err != nil {
		return nil, err
	}

	days := uniqueDates(dates)
	members := make([]Member, 0, len(selections))
	for _, sel := range selections {
		for _, subj := range sel.Subjects {
			members = append(members, Member{StudentID: sel.StudentID, SubjectID: subj})
		}
	}
	combine := tpl.Combined && len(members) > 1

	out := make([]Candidate, 0, len(days)*len(members))
	for _, day := range days {
		iv, err := ToInterval(day, tpl.Time, tpl.DurationMinutes, tpl.Location)
		if err != nil {
			return nil, NewValidationError(err, FieldError{Field: "time", Error: err.Error()})
		}
		if combine {
			out = append(out, Session{
				ScheduledAt:     iv.Start,
				DurationMinutes: tpl.DurationMinutes,
				Notes:           tpl.Notes,
				Members:         append([]Member(nil), members...),
			})
			continue
		}
		for _, m := range members {
			out = append(out, IndividualLesson{
				StudentID:       m.StudentID,
				SubjectID:       m.SubjectID,
				ScheduledAt:     iv.Start,
				DurationMinutes: tpl.DurationMinutes,
				Notes:           tpl.Notes,
			})
		}
	}
	return out, nil
}

func validateSelections(selections []StudentSelection, dates []time.Time, durationMinutes int) error {
	if flds := selectionFields(selections, dates, durationMinutes); len(flds) > 0 {
		return NewValidationError(errors.New("invalid lesson selection"), flds...)
	}
	return nil
}

func selectionFields(selections []StudentSelection, dates []time.Time, durationMinutes int) []FieldError {
	var flds []FieldError
	if len(selections) == 0 {
		flds = append(flds, FieldError{Field: "students", Error: "select at least one student"})
	}
	seen := make(map[string]struct{}, len(selections))
	for i, sel := range selections {
		field := fmt.Sprintf("students[%d]", i)
		if sel.StudentID == "" {
			flds = append(flds, FieldError{Field: field, Error: "student id is required"})
		}
		if _, dup := seen[sel.StudentID]; dup {
			flds = append(flds, FieldError{Field: field, Error: "student selected twice"})
		}
		seen[sel.StudentID] = struct{}{}
		if len(sel.Subjects) == 0 {
			flds = append(flds, FieldError{Field: field + ".subject_ids", Error: "select at least one subject"})
		}
		subj := make(map[string]struct{}, len(sel.Subjects))
		for _, s := range sel.Subjects {
			if _, dup := subj[s]; dup || s == "" {
				flds = append(flds, FieldError{Field: field + ".subject_ids", Error: "subjects must be unique and non-empty"})
				break
			}
			subj[s] = struct{}{}
		}
	}
	if len(dates) == 0 {
		flds = append(flds, FieldError{Field: "dates", Error: "select at least one date"})
	}
	if durationMinutes < MinDurationMinutes || durationMinutes > MaxDurationMinutes {
		flds = append(flds, FieldError{
			Field: "duration_minutes",
			Error: fmt.Sprintf("must be between %d and %d", MinDurationMinutes, MaxDurationMinutes),
		})
	}
	return flds
}

// uniqueDates returns the calendar days of dates, deduplicated and ascending.
func uniqueDates(dates []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		d = DateOnly(d)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
