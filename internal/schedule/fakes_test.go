package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

func datetime(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

type fakeBusy struct {
	mu    sync.Mutex
	slots map[string][]BusySlot
	fail  map[string]error
	calls []string
}

func newFakeBusy() *fakeBusy {
	return &fakeBusy{slots: map[string][]BusySlot{}, fail: map[string]error{}}
}

func (f *fakeBusy) add(slot BusySlot) {
	key := FormatDate(slot.Start)
	f.slots[key] = append(f.slots[key], slot)
}

func (f *fakeBusy) BusySlots(_ context.Context, day time.Time) ([]BusySlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := FormatDate(day)
	f.calls = append(f.calls, key)
	if err := f.fail[key]; err != nil {
		var incomplete *IncompleteBusyError
		if errors.As(err, &incomplete) {
			return f.slots[key], err
		}
		return nil, err
	}
	return f.slots[key], nil
}

func (f *fakeBusy) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type storeCall struct {
	op        string
	candidate Candidate
	tag       string
	lessonID  string
}

type fakeStore struct {
	calls  []storeCall
	failAt int // 1-based call number that fails; 0 never fails
}

var errStoreDown = errors.New("store unavailable")

func (f *fakeStore) record(c storeCall) (string, error) {
	f.calls = append(f.calls, c)
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return "", errStoreDown
	}
	return fmt.Sprintf("id-%d", len(f.calls)), nil
}

func (f *fakeStore) CreateLesson(_ context.Context, l IndividualLesson, tag string) (string, error) {
	return f.record(storeCall{op: "lesson", candidate: l, tag: tag})
}

func (f *fakeStore) CreateSession(_ context.Context, s Session, tag string) (string, error) {
	return f.record(storeCall{op: "session", candidate: s, tag: tag})
}

func (f *fakeStore) UpdateLesson(_ context.Context, id string, at time.Time, dur int, notes string) error {
	_, err := f.record(storeCall{op: "update", lessonID: id, candidate: IndividualLesson{ScheduledAt: at, DurationMinutes: dur, Notes: notes}})
	return err
}

func lesson(student, subject string, at time.Time, dur int) IndividualLesson {
	return IndividualLesson{StudentID: student, SubjectID: subject, ScheduledAt: at, DurationMinutes: dur}
}
