package schedule

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidDuration     = errors.New("duration must be positive")
	ErrUnboundedRecurrence = errors.New("recurrence needs an end date or an occurrence cap")
)

// FieldError is used to indicate an error with a specific request field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError rejects a request before any collaborator is called.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (e *ValidationError) Error() string {
	msg := "invalid booking request"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if len(e.Fields) == 0 {
		return msg
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Error)
	}
	return msg + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ConflictError reports the first candidate that overlaps an existing busy slot.
type ConflictError struct {
	Candidate Candidate
	Slot      BusySlot
}

func (e *ConflictError) Error() string {
	c := e.Candidate.Interval()
	return fmt.Sprintf("lesson on %s at %s overlaps an existing booking from %s to %s",
		c.Start.Format("Mon, Jan 2 2006"), c.String(),
		e.Slot.Start.In(c.Start.Location()).Format("15:04"),
		e.Slot.End.In(c.Start.Location()).Format("15:04"))
}

// PersistenceError is returned when the store rejects a candidate. Candidates
// before Index were persisted and are not rolled back.
type PersistenceError struct {
	Index     int
	Candidate Candidate
	Created   int
	Total     int
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%d of %d lessons were created; booking %d on %s failed: %v",
		e.Created, e.Total, e.Index+1, e.Candidate.Interval().Start.Format("2006-01-02 15:04"), e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}

// IncompleteBusyError is returned by a BusySlotProvider together with the
// slots it did read when one of its sources failed. The checker still tests
// candidates against those slots and reports the day as unverified.
type IncompleteBusyError struct {
	Err error
}

func (e *IncompleteBusyError) Error() string {
	return "busy slots incomplete: " + e.Err.Error()
}

func (e *IncompleteBusyError) Unwrap() error { return e.Err }
