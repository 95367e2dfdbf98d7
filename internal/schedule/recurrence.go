package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

type Recurrence int

const (
	RecurrenceNone Recurrence = iota
	RecurrenceWeekly
	RecurrenceBiweekly
	RecurrenceMonthly
)

var recurrenceNames = map[Recurrence]string{
	RecurrenceNone:     "none",
	RecurrenceWeekly:   "weekly",
	RecurrenceBiweekly: "biweekly",
	RecurrenceMonthly:  "monthly",
}

func ParseRecurrence(s string) (Recurrence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return RecurrenceNone, nil
	case "weekly":
		return RecurrenceWeekly, nil
	case "biweekly":
		return RecurrenceBiweekly, nil
	case "monthly":
		return RecurrenceMonthly, nil
	}
	return RecurrenceNone, fmt.Errorf("unknown recurrence %q", s)
}

func (r Recurrence) String() string {
	if n, ok := recurrenceNames[r]; ok {
		return n
	}
	return fmt.Sprintf("recurrence(%d)", int(r))
}

func (r Recurrence) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Recurrence) UnmarshalText(b []byte) error {
	v, err := ParseRecurrence(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ExpandRecurrence returns the occurrence dates of a series starting at anchor.
// Generation stops after end (inclusive) or after limit occurrences, whichever
// comes first; at least one of them must be given for a repeating rule.
// Monthly series keep the anchor's day of month, clamped to the last day of
// shorter months.
func ExpandRecurrence(anchor time.Time, rec Recurrence, end *time.Time, limit int) ([]time.Time, error) {
	anchor = DateOnly(anchor)
	if rec == RecurrenceNone {
		return []time.Time{anchor}, nil
	}
	if end == nil && limit <= 0 {
		return nil, ErrUnboundedRecurrence
	}

	opt := rrule.ROption{Dtstart: anchor}
	switch rec {
	case RecurrenceWeekly:
		opt.Freq, opt.Interval = rrule.WEEKLY, 1
	case RecurrenceBiweekly:
		opt.Freq, opt.Interval = rrule.WEEKLY, 2
	case RecurrenceMonthly:
		opt.Freq, opt.Interval = rrule.MONTHLY, 1
		opt.Bymonthday, opt.Bysetpos = monthDayClamp(anchor.Day())
	default:
		return nil, fmt.Errorf("unknown recurrence %d", int(rec))
	}
	if end != nil {
		opt.Until = DateOnly(*end)
	} else {
		opt.Count = limit
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("build recurrence rule: %w", err)
	}
	var dates []time.Time
	if end != nil && limit > 0 {
		// Until and a cap together: stop iterating at the cap.
		next := rule.Iterator()
		for len(dates) < limit {
			d, ok := next()
			if !ok {
				break
			}
			dates = append(dates, d)
		}
	} else {
		dates = rule.All()
	}
	for i := range dates {
		dates[i] = DateOnly(dates[i])
	}
	return dates, nil
}

// monthDayClamp selects day in every month, or the month's last day when the
// month is shorter: BYMONTHDAY=28..day with BYSETPOS=-1.
func monthDayClamp(day int) ([]int, []int) {
	if day <= 28 {
		return []int{day}, nil
	}
	days := make([]int, 0, day-27)
	for d := 28; d <= day; d++ {
		days = append(days, d)
	}
	return days, []int{-1}
}
