package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"lesson-scheduler/internal/schedule"
)

type bookingPayload struct {
	Students          []schedule.StudentSelection `json:"students"`
	Dates             []string                    `json:"dates"`
	Time              string                      `json:"time"`
	DurationMinutes   int                         `json:"duration_minutes"`
	Recurrence        string                      `json:"recurrence"`
	RecurrenceEndDate string                      `json:"recurrence_end_date"`
	Occurrences       int                         `json:"occurrences"`
	CombinedSession   bool                        `json:"combined_session"`
	Notes             string                      `json:"notes"`
}

// request converts the payload, reporting unparsable fields the same way the
// engine reports invalid ones.
func (p bookingPayload) request() (schedule.BookingRequest, error) {
	req := schedule.BookingRequest{
		Students:        p.Students,
		DurationMinutes: p.DurationMinutes,
		Occurrences:     p.Occurrences,
		CombinedSession: p.CombinedSession,
		Notes:           p.Notes,
	}
	var flds []schedule.FieldError

	for _, s := range p.Dates {
		d, err := schedule.ParseDate(s)
		if err != nil {
			flds = append(flds, schedule.FieldError{Field: "dates", Error: "dates must be YYYY-MM-DD, got " + strconv.Quote(s)})
			continue
		}
		req.Dates = append(req.Dates, d)
	}

	tod, err := schedule.ParseTimeOfDay(p.Time)
	if err != nil {
		flds = append(flds, schedule.FieldError{Field: "time", Error: "time must be HH:MM"})
	}
	req.Time = tod

	rec, err := schedule.ParseRecurrence(p.Recurrence)
	if err != nil {
		flds = append(flds, schedule.FieldError{Field: "recurrence", Error: err.Error()})
	}
	req.Recurrence = rec

	if p.RecurrenceEndDate != "" {
		end, err := schedule.ParseDate(p.RecurrenceEndDate)
		if err != nil {
			flds = append(flds, schedule.FieldError{Field: "recurrence_end_date", Error: "must be YYYY-MM-DD"})
		} else {
			req.RecurrenceEnd = &end
		}
	}

	if len(flds) > 0 {
		return req, schedule.NewValidationError(errors.New("invalid booking request"), flds...)
	}
	return req, nil
}

type editPayload struct {
	StudentID       string `json:"student_id"`
	SubjectID       string `json:"subject_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes"`
}

// keepParticipants fills an omitted student or subject from the lesson and
// rejects a change to either; only time, duration and notes are editable.
func (p *editPayload) keepParticipants(current Lesson) error {
	const msg = "cannot change on an existing lesson; cancel it and book again"
	var fields []schedule.FieldError
	if p.StudentID == "" {
		p.StudentID = current.StudentID
	} else if p.StudentID != current.StudentID {
		fields = append(fields, schedule.FieldError{Field: "student_id", Error: msg})
	}
	if p.SubjectID == "" {
		p.SubjectID = current.SubjectID
	} else if p.SubjectID != current.SubjectID {
		fields = append(fields, schedule.FieldError{Field: "subject_id", Error: msg})
	}
	if len(fields) > 0 {
		return schedule.NewValidationError(errors.New("invalid lesson edit"), fields...)
	}
	return nil
}

// POST /tutors/:id/lessons
func (a *App) CreateLessonsHandler(c *gin.Context) {
	tutorID, ok := tutorParam(c)
	if !ok {
		return
	}
	var payload bookingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := payload.request()
	if err != nil {
		a.writeError(c, err)
		return
	}
	a.book(c, tutorID, req, http.StatusCreated)
}

// POST /tutors/:id/lessons/preview
func (a *App) PreviewLessonsHandler(c *gin.Context) {
	tutorID, ok := tutorParam(c)
	if !ok {
		return
	}
	var payload bookingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := payload.request()
	if err != nil {
		a.writeError(c, err)
		return
	}
	engine, err := a.engineFor(c, tutorID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan, err := engine.Plan(c.Request.Context(), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// PUT /tutors/:id/lessons/:lesson_id
func (a *App) UpdateLessonHandler(c *gin.Context) {
	tutorID, ok := tutorParam(c)
	if !ok {
		return
	}
	lessonID := c.Param("lesson_id")
	if _, err := uuid.Parse(lessonID); err != nil {
		a.writeError(c, ErrEditNotFound)
		return
	}
	var payload editPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	current, err := a.Repo.GetLesson(ctx, tutorID, lessonID)
	if errors.Is(err, ErrNotFound) || (err == nil && current.Status != StatusScheduled) {
		a.writeError(c, ErrEditNotFound)
		return
	}
	if err != nil {
		a.writeError(c, err)
		return
	}

	if err := payload.keepParticipants(current); err != nil {
		a.writeError(c, err)
		return
	}

	req, err := bookingPayload{
		Students:        []schedule.StudentSelection{{StudentID: payload.StudentID, Subjects: []string{payload.SubjectID}}},
		Dates:           []string{payload.Date},
		Time:            payload.Time,
		DurationMinutes: payload.DurationMinutes,
		Notes:           payload.Notes,
	}.request()
	if err != nil {
		a.writeError(c, err)
		return
	}
	req.Edit = &schedule.EditTarget{LessonID: current.ID, Original: current.Interval()}

	a.book(c, tutorID, req, http.StatusOK, schedule.DateOnly(current.ScheduledAt.In(a.location())))
}

// book runs the engine and writes the summary. Cached days are dropped for
// every booking that reached the store, including those written before a
// persistence failure.
func (a *App) book(c *gin.Context, tutorID string, req schedule.BookingRequest, status int, alsoTouched ...time.Time) {
	engine, err := a.engineFor(c, tutorID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	sum, err := engine.Book(ctx, req)
	if len(sum.Created) > 0 {
		a.Cache.Invalidate(context.WithoutCancel(ctx), tutorID, append(a.touchedDates(sum.Created), alsoTouched...)...)
	}

	// An edited lesson cancelled in the meantime surfaces as ErrNotFound.
	if errors.Is(err, ErrNotFound) {
		a.writeError(c, ErrEditNotFound)
		return
	}
	var perr *schedule.PersistenceError
	if errors.As(err, &perr) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":        perr.Error(),
			"created":      sum.Created,
			"total":        perr.Total,
			"failed_index": perr.Index,
		})
		return
	}
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(status, sum)
}

// GET /tutors/:id/lessons?from=ISO&to=ISO
func (a *App) ListLessonsHandler(c *gin.Context) {
	tutorID, ok := tutorParam(c)
	if !ok {
		return
	}
	fromStr := c.Query("from")
	toStr := c.Query("to")
	var from, to time.Time
	filtered := fromStr != "" || toStr != ""
	if filtered {
		if fromStr == "" || toStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from and to must be given together (ISO8601)"})
			return
		}
		var err error
		if from, err = time.Parse(time.RFC3339, fromStr); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
			return
		}
		if to, err = time.Parse(time.RFC3339, toStr); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
			return
		}
		if !from.Before(to) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be before to"})
			return
		}
	}

	ctx := c.Request.Context()
	lessons, err := a.Repo.ListLessons(ctx, tutorID, from.UTC(), to.UTC(), filtered)
	if err != nil {
		a.writeError(c, err)
		return
	}
	sessions, err := a.Repo.ListSessions(ctx, tutorID, from.UTC(), to.UTC(), filtered)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if lessons == nil {
		lessons = []Lesson{}
	}
	if sessions == nil {
		sessions = []Session{}
	}
	c.JSON(http.StatusOK, gin.H{"lessons": lessons, "sessions": sessions})
}

// DELETE /lessons/:id
func (a *App) CancelLessonHandler(c *gin.Context) {
	lessonID := c.Param("id")
	if _, err := uuid.Parse(lessonID); err != nil {
		a.writeError(c, ErrNotFound)
		return
	}

	ctx := c.Request.Context()
	l, err := a.Repo.CancelLesson(ctx, c.GetString(tutorIDKey), lessonID)
	if errors.Is(err, ErrAlreadyCancelled) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		a.writeError(c, err)
		return
	}
	a.Cache.Invalidate(ctx, l.TutorID, schedule.DateOnly(l.ScheduledAt.In(a.location())))
	c.JSON(http.StatusOK, l)
}

// GET /tutors/:id/busy?date=YYYY-MM-DD
func (a *App) BusyHandler(c *gin.Context) {
	tutorID, ok := tutorParam(c)
	if !ok {
		return
	}
	date, ok := dateQuery(c)
	if !ok {
		return
	}
	busy, incomplete, ok := a.busyOn(c, tutorID, date)
	if !ok {
		return
	}
	if busy == nil {
		busy = []schedule.BusySlot{}
	}
	resp := gin.H{"date": schedule.FormatDate(date), "busy": busy}
	if incomplete {
		resp["incomplete"] = true
	}
	c.JSON(http.StatusOK, resp)
}

// GET /tutors/:id/open-slots?date=YYYY-MM-DD&duration=60&step=15
func (a *App) OpenSlotsHandler(c *gin.Context) {
	tutorID, ok := tutorParam(c)
	if !ok {
		return
	}
	date, ok := dateQuery(c)
	if !ok {
		return
	}
	duration, err := strconv.Atoi(c.Query("duration"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration (minutes) required"})
		return
	}
	step := defaultSlotStepMinutes
	if s := c.Query("step"); s != "" {
		if step, err = strconv.Atoi(s); err != nil || step <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step"})
			return
		}
	}

	busy, incomplete, ok := a.busyOn(c, tutorID, date)
	if !ok {
		return
	}
	slots, err := OpenSlots(date, a.WorkdayStart, a.WorkdayEnd, duration, step, busy, a.location())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if slots == nil {
		slots = []Slot{}
	}
	resp := gin.H{"date": schedule.FormatDate(date), "slots": slots}
	if incomplete {
		resp["incomplete"] = true
	}
	c.JSON(http.StatusOK, resp)
}

// busyOn writes the error response itself when ok is false. incomplete
// reports that some busy-slot source failed and only the others were read.
func (a *App) busyOn(c *gin.Context, tutorID string, date time.Time) (busy []schedule.BusySlot, incomplete bool, ok bool) {
	provider, err := a.busyProvider(c, tutorID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false, false
	}
	busy, err = provider.BusySlots(c.Request.Context(), date)
	var partial *schedule.IncompleteBusyError
	switch {
	case err == nil:
	case errors.As(err, &partial):
		a.logger().Warn("busy slots incomplete", zap.String("tutor_id", tutorID),
			zap.String("date", schedule.FormatDate(date)), zap.Error(err))
		incomplete = true
	default:
		a.logger().Warn("busy slots unavailable", zap.String("tutor_id", tutorID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "busy slots unavailable"})
		return nil, false, false
	}
	return busy, incomplete, true
}

func dateQuery(c *gin.Context) (time.Time, bool) {
	date, err := schedule.ParseDate(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date required (YYYY-MM-DD)"})
		return time.Time{}, false
	}
	return date, true
}

// GET /healthz
func (a *App) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /readyz
func (a *App) ReadyHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := a.Repo.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database: " + err.Error()})
		return
	}
	if a.Cache != nil {
		if err := a.Cache.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "redis: " + err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// writeError maps engine and repository errors to HTTP responses.
func (a *App) writeError(c *gin.Context, err error) {
	var (
		verr *schedule.ValidationError
		cerr *schedule.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Fields})
	case errors.As(err, &cerr):
		c.JSON(http.StatusConflict, gin.H{
			"error":    cerr.Error(),
			"date":     schedule.FormatDate(cerr.Candidate.Interval().Start),
			"conflict": cerr.Slot,
		})
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrEditNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		a.logger().Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
