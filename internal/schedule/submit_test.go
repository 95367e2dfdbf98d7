package schedule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitter_CreatesInOrder(t *testing.T) {
	store := &fakeStore{}
	session := Session{
		ScheduledAt:     datetime(2025, 3, 11, 15, 0),
		DurationMinutes: 60,
		Members:         []Member{{StudentID: "s1", SubjectID: "piano"}, {StudentID: "s2", SubjectID: "math"}},
	}
	candidates := []Candidate{lesson("s1", "piano", datetime(2025, 3, 10, 15, 0), 30), session}

	created, err := (&Submitter{Store: store}).Submit(context.Background(), candidates, nil, "tag-1")
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, Created{ID: "id-1", Kind: "lesson", Candidate: candidates[0]}, created[0])
	assert.Equal(t, Created{ID: "id-2", Kind: "session", Candidate: session}, created[1])

	require.Len(t, store.calls, 2)
	assert.Equal(t, "lesson", store.calls[0].op)
	assert.Equal(t, "session", store.calls[1].op)
	assert.Equal(t, "tag-1", store.calls[1].tag)
}

func TestSubmitter_StopsAtFirstFailure(t *testing.T) {
	store := &fakeStore{failAt: 2}
	candidates := []Candidate{
		lesson("s1", "piano", datetime(2025, 3, 10, 15, 0), 30),
		lesson("s1", "piano", datetime(2025, 3, 17, 15, 0), 30),
		lesson("s1", "piano", datetime(2025, 3, 24, 15, 0), 30),
	}

	created, err := (&Submitter{Store: store}).Submit(context.Background(), candidates, nil, "")
	assert.Len(t, store.calls, 2)
	assert.Len(t, created, 1)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Index)
	assert.Equal(t, candidates[1], perr.Candidate)
	assert.Equal(t, 1, perr.Created)
	assert.Equal(t, 3, perr.Total)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Contains(t, err.Error(), "1 of 3 lessons were created")
}

func TestSubmitter_EditUpdatesSingleLesson(t *testing.T) {
	store := &fakeStore{}
	moved := lesson("s1", "piano", datetime(2025, 3, 10, 16, 0), 45)
	moved.Notes = "moved"

	created, err := (&Submitter{Store: store}).Submit(context.Background(), []Candidate{moved}, &EditTarget{LessonID: "l-7"}, "")
	require.NoError(t, err)
	assert.Equal(t, []Created{{ID: "l-7", Kind: "lesson", Candidate: moved}}, created)
	require.Len(t, store.calls, 1)
	assert.Equal(t, "update", store.calls[0].op)
	assert.Equal(t, "l-7", store.calls[0].lessonID)
	assert.Equal(t, IndividualLesson{ScheduledAt: moved.ScheduledAt, DurationMinutes: 45, Notes: "moved"}, store.calls[0].candidate)
}

func TestSubmitter_EditRejectsSeveralBookings(t *testing.T) {
	store := &fakeStore{}
	candidates := []Candidate{
		lesson("s1", "piano", datetime(2025, 3, 10, 16, 0), 45),
		lesson("s1", "piano", datetime(2025, 3, 11, 16, 0), 45),
	}
	_, err := (&Submitter{Store: store}).Submit(context.Background(), candidates, &EditTarget{LessonID: "l-7"}, "")
	assert.True(t, IsValidation(err))
	assert.Empty(t, store.calls)
}

func TestSubmitter_EditFailure(t *testing.T) {
	store := &fakeStore{failAt: 1}
	_, err := (&Submitter{Store: store}).Submit(context.Background(),
		[]Candidate{lesson("s1", "piano", datetime(2025, 3, 10, 16, 0), 45)}, &EditTarget{LessonID: "l-7"}, "")
	assert.True(t, IsPersistence(err))
	assert.ErrorIs(t, err, errStoreDown)
}
