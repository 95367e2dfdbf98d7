package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lesson-scheduler/internal/schedule"
)

// tutorCalendar scopes a Repository to one tutor so the engine can use it
// as its LessonStore and BusySlotProvider.
type tutorCalendar struct {
	repo    Repository
	tutorID string
	loc     *time.Location
}

func (t tutorCalendar) BusySlots(ctx context.Context, date time.Time) ([]schedule.BusySlot, error) {
	return t.repo.BusySlots(ctx, t.tutorID, schedule.DayBounds(date, t.loc))
}

func (t tutorCalendar) CreateLesson(ctx context.Context, l schedule.IndividualLesson, recurrenceTag string) (string, error) {
	return t.repo.CreateLesson(ctx, t.tutorID, l, recurrenceTag)
}

func (t tutorCalendar) CreateSession(ctx context.Context, s schedule.Session, recurrenceTag string) (string, error) {
	return t.repo.CreateSession(ctx, t.tutorID, s, recurrenceTag)
}

func (t tutorCalendar) UpdateLesson(ctx context.Context, lessonID string, scheduledAt time.Time, durationMinutes int, notes string) error {
	return t.repo.UpdateLesson(ctx, t.tutorID, lessonID, scheduledAt, durationMinutes, notes)
}

// mergedBusy concatenates the busy slots of several providers. When some
// providers fail, the slots of the others are still returned, wrapped in a
// schedule.IncompleteBusyError. The day fails outright only when every
// provider fails.
type mergedBusy []schedule.BusySlotProvider

func (m mergedBusy) BusySlots(ctx context.Context, date time.Time) ([]schedule.BusySlot, error) {
	var (
		out    []schedule.BusySlot
		errs   []error
		served int
	)
	for _, p := range m {
		slots, err := p.BusySlots(ctx, date)
		if err != nil {
			errs = append(errs, err)
			var incomplete *schedule.IncompleteBusyError
			if !errors.As(err, &incomplete) {
				continue
			}
		}
		served++
		out = append(out, slots...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	switch {
	case len(errs) == 0:
		return out, nil
	case served == 0:
		return nil, errors.Join(errs...)
	default:
		return out, &schedule.IncompleteBusyError{Err: errors.Join(errs...)}
	}
}

// busyProvider builds the busy-slot source for one request: the tutor's
// lessons through the cache, plus Google free/busy when the caller sent a
// Google token.
func (a *App) busyProvider(c *gin.Context, tutorID string) (schedule.BusySlotProvider, error) {
	var busy schedule.BusySlotProvider = a.Cache.Provider(tutorID, tutorCalendar{repo: a.Repo, tutorID: tutorID, loc: a.location()})

	google, err := a.googleBusyFromRequest(c)
	if err != nil {
		return nil, err
	}
	if google != nil {
		busy = mergedBusy{busy, google}
	}
	return busy, nil
}

func (a *App) engineFor(c *gin.Context, tutorID string) (*schedule.Engine, error) {
	busy, err := a.busyProvider(c, tutorID)
	if err != nil {
		return nil, err
	}
	store := tutorCalendar{repo: a.Repo, tutorID: tutorID, loc: a.location()}
	return schedule.NewEngine(busy, store, schedule.Options{
		Location:             a.location(),
		BusyQueryConcurrency: a.BusyQueryConcurrency,
		MaxOccurrences:       a.MaxOccurrences,
		Logger:               a.logger().With(zap.String("tutor_id", tutorID)),
	}), nil
}

// touchedDates lists the business-zone days covered by the created bookings.
func (a *App) touchedDates(created []schedule.Created) []time.Time {
	seen := map[time.Time]bool{}
	var out []time.Time
	for _, cr := range created {
		d := schedule.DateOnly(cr.Candidate.Interval().Start.In(a.location()))
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

func (a *App) location() *time.Location {
	if a.Location == nil {
		return time.UTC
	}
	return a.Location
}

func (a *App) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}
