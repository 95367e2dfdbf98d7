package schedule

import (
	"fmt"
	"time"
)

const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 240

	dateLayout = "2006-01-02"
)

// TimeOfDay is a wall-clock time in the business zone.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ParseTimeOfDay accepts "HH:MM" (anything after the minutes is ignored).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) < 5 {
		return TimeOfDay{}, fmt.Errorf("invalid time string: %s", s)
	}
	t, err := time.Parse("15:04", s[:5])
	if err != nil {
		return TimeOfDay{}, err
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ToInterval places a lesson of durationMinutes at the given time of day on date,
// interpreted in loc.
func ToInterval(date time.Time, tod TimeOfDay, durationMinutes int, loc *time.Location) (Interval, error) {
	if durationMinutes <= 0 {
		return Interval{}, ErrInvalidDuration
	}
	if !tod.Valid() {
		return Interval{}, fmt.Errorf("invalid time of day %s", tod)
	}
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	start := time.Date(y, m, d, tod.Hour, tod.Minute, 0, 0, loc)
	return Interval{Start: start, End: start.Add(time.Duration(durationMinutes) * time.Minute)}, nil
}

// Overlaps reports a strict half-open overlap; back-to-back intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

func (i Interval) Equal(o Interval) bool {
	return i.Start.Equal(o.Start) && i.End.Equal(o.End)
}

func (i Interval) String() string {
	return fmt.Sprintf("%s–%s", i.Start.Format("15:04"), i.End.Format("15:04"))
}

// DateOnly strips the clock from t, keeping its calendar day, as midnight UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// DayBounds returns the business-zone day containing date as an interval.
func DayBounds(date time.Time, loc *time.Location) Interval {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return Interval{Start: start, End: time.Date(y, m, d+1, 0, 0, 0, 0, loc)}
}
