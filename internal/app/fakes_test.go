package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"lesson-scheduler/internal/schedule"
)

var errDBDown = errors.New("db down")

// memRepo is an in-memory Repository.
type memRepo struct {
	mu       sync.Mutex
	lessons  map[string]*Lesson
	order    []string
	sessions []Session

	creates      int
	failCreateAt int // 1-based; 0 never fails
	busyCalls    int
	pingErr      error
}

func newMemRepo() *memRepo {
	return &memRepo{lessons: map[string]*Lesson{}}
}

func (r *memRepo) nextCreate() error {
	r.creates++
	if r.failCreateAt > 0 && r.creates == r.failCreateAt {
		return errDBDown
	}
	return nil
}

func (r *memRepo) CreateLesson(_ context.Context, tutorID string, l schedule.IndividualLesson, tag string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.nextCreate(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	r.lessons[id] = &Lesson{
		ID: id, TutorID: tutorID, StudentID: l.StudentID, SubjectID: l.SubjectID,
		ScheduledAt: l.ScheduledAt, DurationMinutes: l.DurationMinutes, Notes: l.Notes,
		RecurrenceTag: tag, Status: StatusScheduled,
	}
	r.order = append(r.order, id)
	return id, nil
}

func (r *memRepo) CreateSession(_ context.Context, tutorID string, s schedule.Session, tag string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.nextCreate(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	r.sessions = append(r.sessions, Session{
		ID: id, TutorID: tutorID, ScheduledAt: s.ScheduledAt, DurationMinutes: s.DurationMinutes,
		Notes: s.Notes, RecurrenceTag: tag, Status: StatusScheduled, Members: s.Members,
	})
	return id, nil
}

func (r *memRepo) UpdateLesson(_ context.Context, tutorID, lessonID string, at time.Time, dur int, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lessons[lessonID]
	if !ok || l.TutorID != tutorID || l.Status != StatusScheduled {
		return ErrNotFound
	}
	l.ScheduledAt, l.DurationMinutes, l.Notes = at, dur, notes
	return nil
}

func (r *memRepo) GetLesson(_ context.Context, tutorID, lessonID string) (Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lessons[lessonID]
	if !ok || l.TutorID != tutorID {
		return Lesson{}, ErrNotFound
	}
	return *l, nil
}

func (r *memRepo) CancelLesson(_ context.Context, tutorID, lessonID string) (Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lessons[lessonID]
	if !ok || (tutorID != "" && l.TutorID != tutorID) {
		return Lesson{}, ErrNotFound
	}
	if l.Status == StatusCancelled {
		return *l, ErrAlreadyCancelled
	}
	l.Status = StatusCancelled
	return *l, nil
}

func (r *memRepo) ListLessons(_ context.Context, tutorID string, from, to time.Time, filtered bool) ([]Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Lesson
	for _, id := range r.order {
		l := r.lessons[id]
		if l.TutorID != tutorID {
			continue
		}
		if filtered && (l.ScheduledAt.Before(from) || !l.ScheduledAt.Before(to)) {
			continue
		}
		out = append(out, *l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (r *memRepo) ListSessions(_ context.Context, tutorID string, from, to time.Time, filtered bool) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Session
	for _, s := range r.sessions {
		if s.TutorID != tutorID {
			continue
		}
		if filtered && (s.ScheduledAt.Before(from) || !s.ScheduledAt.Before(to)) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *memRepo) BusySlots(_ context.Context, tutorID string, day schedule.Interval) ([]schedule.BusySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busyCalls++
	var out []schedule.BusySlot
	for _, id := range r.order {
		l := r.lessons[id]
		if l.TutorID == tutorID && l.Status == StatusScheduled && l.Interval().Overlaps(day) {
			out = append(out, schedule.BusySlot{Start: l.ScheduledAt, End: l.Interval().End, LessonID: l.ID})
		}
	}
	for _, s := range r.sessions {
		iv := schedule.Interval{Start: s.ScheduledAt, End: s.ScheduledAt.Add(time.Duration(s.DurationMinutes) * time.Minute)}
		if s.TutorID == tutorID && s.Status == StatusScheduled && iv.Overlaps(day) {
			out = append(out, schedule.BusySlot{Start: iv.Start, End: iv.End})
		}
	}
	return out, nil
}

func (r *memRepo) Ping(context.Context) error { return r.pingErr }

func (r *memRepo) add(tutorID string, at time.Time, minutes int) string {
	id, _ := r.CreateLesson(context.Background(), tutorID, schedule.IndividualLesson{
		StudentID: "s-seed", SubjectID: "sub-seed", ScheduledAt: at, DurationMinutes: minutes,
	}, "")
	r.mu.Lock()
	r.creates--
	r.mu.Unlock()
	return id
}

func (r *memRepo) scheduled() []Lesson {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Lesson
	for _, id := range r.order {
		if l := r.lessons[id]; l.Status == StatusScheduled {
			out = append(out, *l)
		}
	}
	return out
}

const (
	testSecret  = "test-secret"
	staticToken = "static-token"
	testTutor   = "tutor-1"
)

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestApp(t *testing.T) (*App, *memRepo, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := newMemRepo()
	a := &App{
		Repo:         repo,
		Logger:       zaptest.NewLogger(t),
		Location:     time.UTC,
		WorkdayStart: schedule.TimeOfDay{Hour: 8},
		WorkdayEnd:   schedule.TimeOfDay{Hour: 12},
	}
	return a, repo, NewRouter(a, AuthMiddleware(testSecret, []string{staticToken}))
}

func tokenFor(t *testing.T, subject string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: subject}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, router http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	return doWithHeader(t, router, method, path, body, token, "", "")
}

func doWithHeader(t *testing.T, router http.Handler, method, path string, body any, token, key, value string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if key != "" {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
