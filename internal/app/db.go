package app

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lesson-scheduler/internal/schedule"
)

var (
	ErrNotFound         = errors.New("lesson not found")
	ErrAlreadyCancelled = errors.New("lesson already cancelled")
	ErrEditNotFound     = errors.New("lesson to edit not found or cancelled")
)

// Repository is the tutor calendar storage used by the handlers.
type Repository interface {
	CreateLesson(ctx context.Context, tutorID string, l schedule.IndividualLesson, recurrenceTag string) (string, error)
	CreateSession(ctx context.Context, tutorID string, s schedule.Session, recurrenceTag string) (string, error)
	UpdateLesson(ctx context.Context, tutorID, lessonID string, scheduledAt time.Time, durationMinutes int, notes string) error
	GetLesson(ctx context.Context, tutorID, lessonID string) (Lesson, error)
	// CancelLesson marks a lesson cancelled. An empty tutorID matches any tutor.
	CancelLesson(ctx context.Context, tutorID, lessonID string) (Lesson, error)
	ListLessons(ctx context.Context, tutorID string, from, to time.Time, filtered bool) ([]Lesson, error)
	ListSessions(ctx context.Context, tutorID string, from, to time.Time, filtered bool) ([]Session, error)
	BusySlots(ctx context.Context, tutorID string, day schedule.Interval) ([]schedule.BusySlot, error)
	Ping(ctx context.Context) error
}

type PGStore struct {
	DB *pgxpool.Pool
}

func OpenPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func (s *PGStore) CreateLesson(ctx context.Context, tutorID string, l schedule.IndividualLesson, recurrenceTag string) (string, error) {
	q := `INSERT INTO lessons
          (tutor_id, student_id, subject_id, scheduled_at, duration_minutes, notes, recurrence_tag, status, created_at)
          VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),'scheduled',now()) RETURNING id::text`
	var id string
	err := s.DB.QueryRow(ctx, q,
		tutorID, l.StudentID, l.SubjectID, l.ScheduledAt.UTC(), l.DurationMinutes, l.Notes, recurrenceTag,
	).Scan(&id)
	return id, err
}

func (s *PGStore) CreateSession(ctx context.Context, tutorID string, sess schedule.Session, recurrenceTag string) (string, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	q := `INSERT INTO sessions
          (tutor_id, scheduled_at, duration_minutes, notes, recurrence_tag, status, created_at)
          VALUES ($1,$2,$3,$4,NULLIF($5,''),'scheduled',now()) RETURNING id::text`
	if err := tx.QueryRow(ctx, q,
		tutorID, sess.ScheduledAt.UTC(), sess.DurationMinutes, sess.Notes, recurrenceTag,
	).Scan(&id); err != nil {
		return "", err
	}

	batch := &pgx.Batch{}
	for i, m := range sess.Members {
		batch.Queue(`INSERT INTO session_members (session_id, position, student_id, subject_id) VALUES ($1,$2,$3,$4)`,
			id, i, m.StudentID, m.SubjectID)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return "", err
	}
	return id, tx.Commit(ctx)
}

func (s *PGStore) UpdateLesson(ctx context.Context, tutorID, lessonID string, scheduledAt time.Time, durationMinutes int, notes string) error {
	q := `UPDATE lessons
          SET scheduled_at=$1, duration_minutes=$2, notes=$3, updated_at=now()
          WHERE id=$4 AND tutor_id=$5 AND status='scheduled'`
	res, err := s.DB.Exec(ctx, q, scheduledAt.UTC(), durationMinutes, notes, lessonID, tutorID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const lessonColumns = `id::text,tutor_id,student_id,subject_id,scheduled_at,duration_minutes,notes,
	COALESCE(recurrence_tag,''),status,created_at,updated_at`

func scanLesson(row pgx.Row) (Lesson, error) {
	var l Lesson
	err := row.Scan(&l.ID, &l.TutorID, &l.StudentID, &l.SubjectID, &l.ScheduledAt, &l.DurationMinutes,
		&l.Notes, &l.RecurrenceTag, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (s *PGStore) GetLesson(ctx context.Context, tutorID, lessonID string) (Lesson, error) {
	q := `SELECT ` + lessonColumns + ` FROM lessons WHERE id=$1 AND tutor_id=$2`
	l, err := scanLesson(s.DB.QueryRow(ctx, q, lessonID, tutorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lesson{}, ErrNotFound
	}
	return l, err
}

func (s *PGStore) CancelLesson(ctx context.Context, tutorID, lessonID string) (Lesson, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Lesson{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	l, err := scanLesson(tx.QueryRow(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id=$1 AND ($2 = '' OR tutor_id=$2) FOR UPDATE`,
		lessonID, tutorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lesson{}, ErrNotFound
	}
	if err != nil {
		return Lesson{}, err
	}
	if l.Status == StatusCancelled {
		return l, ErrAlreadyCancelled
	}

	if _, err := tx.Exec(ctx, `UPDATE lessons SET status='cancelled', updated_at=now() WHERE id=$1`, lessonID); err != nil {
		return Lesson{}, err
	}
	l.Status = StatusCancelled
	return l, tx.Commit(ctx)
}

func (s *PGStore) ListLessons(ctx context.Context, tutorID string, from, to time.Time, filtered bool) ([]Lesson, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if filtered {
		q := `SELECT ` + lessonColumns + ` FROM lessons
              WHERE tutor_id=$1 AND scheduled_at >= $2 AND scheduled_at < $3
              ORDER BY scheduled_at`
		rows, err = s.DB.Query(ctx, q, tutorID, from, to)
	} else {
		q := `SELECT ` + lessonColumns + ` FROM lessons WHERE tutor_id=$1 ORDER BY scheduled_at`
		rows, err = s.DB.Query(ctx, q, tutorID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PGStore) ListSessions(ctx context.Context, tutorID string, from, to time.Time, filtered bool) ([]Session, error) {
	q := `SELECT s.id::text, s.tutor_id, s.scheduled_at, s.duration_minutes, s.notes,
                 COALESCE(s.recurrence_tag,''), s.status, s.created_at,
                 COALESCE(array_agg(m.student_id ORDER BY m.position) FILTER (WHERE m.student_id IS NOT NULL), '{}'),
                 COALESCE(array_agg(m.subject_id ORDER BY m.position) FILTER (WHERE m.subject_id IS NOT NULL), '{}')
          FROM sessions s
          LEFT JOIN session_members m ON m.session_id = s.id
          WHERE s.tutor_id=$1 AND ($2 = false OR (s.scheduled_at >= $3 AND s.scheduled_at < $4))
          GROUP BY s.id
          ORDER BY s.scheduled_at`
	rows, err := s.DB.Query(ctx, q, tutorID, filtered, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess     Session
			students []string
			subjects []string
		)
		if err := rows.Scan(&sess.ID, &sess.TutorID, &sess.ScheduledAt, &sess.DurationMinutes, &sess.Notes,
			&sess.RecurrenceTag, &sess.Status, &sess.CreatedAt, &students, &subjects); err != nil {
			return nil, err
		}
		for i := range students {
			if i < len(subjects) {
				sess.Members = append(sess.Members, schedule.Member{StudentID: students[i], SubjectID: subjects[i]})
			}
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// BusySlots returns scheduled lessons and sessions overlapping day. Only
// individual lessons carry a LessonID.
func (s *PGStore) BusySlots(ctx context.Context, tutorID string, day schedule.Interval) ([]schedule.BusySlot, error) {
	q := `SELECT id::text, scheduled_at, duration_minutes FROM lessons
          WHERE tutor_id=$1 AND status='scheduled'
            AND scheduled_at < $3 AND scheduled_at + make_interval(mins => duration_minutes) > $2
          UNION ALL
          SELECT '', scheduled_at, duration_minutes FROM sessions
          WHERE tutor_id=$1 AND status='scheduled'
            AND scheduled_at < $3 AND scheduled_at + make_interval(mins => duration_minutes) > $2
          ORDER BY 2`
	rows, err := s.DB.Query(ctx, q, tutorID, day.Start, day.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.BusySlot
	for rows.Next() {
		var (
			id    string
			start time.Time
			mins  int
		)
		if err := rows.Scan(&id, &start, &mins); err != nil {
			return nil, err
		}
		out = append(out, schedule.BusySlot{Start: start, End: start.Add(time.Duration(mins) * time.Minute), LessonID: id})
	}
	return out, rows.Err()
}
