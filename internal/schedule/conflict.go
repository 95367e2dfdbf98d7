package schedule

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Checker tests candidates against the tutor's busy slots, one provider query
// per distinct date.
//
// With Concurrency <= 1 dates are queried lazily in candidate order, so a
// conflict stops further queries. With Concurrency > 1 all dates are fetched
// up front, at most Concurrency at a time, and then evaluated in order.
type Checker struct {
	Provider    BusySlotProvider
	Concurrency int
	Logger      *zap.Logger
}

// CheckReport describes a successful check. UnverifiedDates are the dates
// whose busy-slot query failed, fully or in part; only the slots that were
// read for them were checked.
type CheckReport struct {
	DatesChecked    int
	UnverifiedDates []time.Time
}

type dayResult struct {
	slots []BusySlot
	err   error
}

// Check returns a *ConflictError for the first candidate, in the given order,
// that overlaps a busy slot. A failed busy-slot query does not block booking.
func (c *Checker) Check(ctx context.Context, candidates []Candidate, edit *EditTarget) (CheckReport, error) {
	var report CheckReport
	days := make(map[time.Time]*dayResult)

	if c.Concurrency > 1 {
		if err := c.prefetch(ctx, candidates, days, &report); err != nil {
			return report, err
		}
	}

	for _, cand := range candidates {
		iv := cand.Interval()
		for _, day := range spannedDays(iv) {
			res, ok := days[day]
			if !ok {
				if err := ctx.Err(); err != nil {
					return report, err
				}
				slots, err := c.Provider.BusySlots(ctx, day)
				res = &dayResult{slots: slots, err: err}
				days[day] = res
				c.noteDay(&report, day, res)
			}
			for _, slot := range res.slots {
				if edit.skips(slot) {
					continue
				}
				if iv.Overlaps(slot.Interval()) {
					return report, &ConflictError{Candidate: cand, Slot: slot}
				}
			}
		}
	}
	return report, nil
}

func (c *Checker) prefetch(ctx context.Context, candidates []Candidate, days map[time.Time]*dayResult, report *CheckReport) error {
	var order []time.Time
	seen := make(map[time.Time]struct{})
	for _, cand := range candidates {
		for _, day := range spannedDays(cand.Interval()) {
			if _, ok := seen[day]; ok {
				continue
			}
			seen[day] = struct{}{}
			order = append(order, day)
		}
	}

	results := make([]dayResult, len(order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Concurrency)
	for i, day := range order {
		g.Go(func() error {
			slots, err := c.Provider.BusySlots(gctx, day)
			results[i] = dayResult{slots: slots, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, day := range order {
		res := &results[i]
		days[day] = res
		c.noteDay(report, day, res)
	}
	return nil
}

func (c *Checker) noteDay(report *CheckReport, day time.Time, res *dayResult) {
	report.DatesChecked++
	if res.err == nil {
		return
	}
	var incomplete *IncompleteBusyError
	if errors.As(res.err, &incomplete) {
		c.logger().Warn("busy slots incomplete, checking known slots only",
			zap.String("date", FormatDate(day)), zap.Int("known", len(res.slots)), zap.Error(incomplete.Err))
	} else {
		c.logger().Warn("busy slots unavailable, treating day as free",
			zap.String("date", FormatDate(day)), zap.Error(res.err))
		res.slots = nil
	}
	report.UnverifiedDates = append(report.UnverifiedDates, day)
}

// spannedDays lists the calendar days iv touches, in order. A lesson running
// past midnight needs the next day's busy slots too.
func spannedDays(iv Interval) []time.Time {
	first := DateOnly(iv.Start)
	last := DateOnly(iv.End.Add(-time.Nanosecond))
	days := []time.Time{first}
	for d := first.AddDate(0, 0, 1); !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (c *Checker) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
