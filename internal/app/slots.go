package app

import (
	"errors"
	"time"

	"lesson-scheduler/internal/schedule"
)

const defaultSlotStepMinutes = 15

// Slot DTO
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// OpenSlots walks the working day of date in steps of stepMinutes and returns
// every start time at which a lesson of durationMinutes fits between from and
// to without overlapping a busy slot. Back-to-back placements are allowed.
func OpenSlots(date time.Time, from, to schedule.TimeOfDay, durationMinutes, stepMinutes int, busy []schedule.BusySlot, loc *time.Location) ([]Slot, error) {
	if durationMinutes < schedule.MinDurationMinutes || durationMinutes > schedule.MaxDurationMinutes {
		return nil, schedule.ErrInvalidDuration
	}
	if stepMinutes <= 0 {
		stepMinutes = defaultSlotStepMinutes
	}
	workMinutes := (to.Hour*60 + to.Minute) - (from.Hour*60 + from.Minute)
	if workMinutes <= 0 {
		return nil, errors.New("working day must end after it starts")
	}
	workday, err := schedule.ToInterval(date, from, workMinutes, loc)
	if err != nil {
		return nil, err
	}

	length := time.Duration(durationMinutes) * time.Minute
	step := time.Duration(stepMinutes) * time.Minute

	var out []Slot
	for s := workday.Start; !s.Add(length).After(workday.End); s = s.Add(step) {
		cand := schedule.Interval{Start: s, End: s.Add(length)}
		if !overlapsAny(cand, busy) {
			out = append(out, Slot{Start: cand.Start, End: cand.End})
		}
	}
	return out, nil
}

func overlapsAny(iv schedule.Interval, busy []schedule.BusySlot) bool {
	for _, b := range busy {
		if iv.Overlaps(b.Interval()) {
			return true
		}
	}
	return false
}
