package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/course"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/progress"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/storage/database/inmem"
)

func rows(completed ...bool) []progress.Progress {
	res := make([]progress.Progress, 0, len(completed))
	for i, c := range completed {
		res = append(res, progress.Progress{LessonIndex: i, Completed: c})
	}
	return res
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name  string
		rows  []progress.Progress
		total int
		want  progress.Summary
	}{
		{name: "nothing", total: 3, want: progress.Summary{TotalLessons: 3}},
		{name: "nothing, no lessons", want: progress.Summary{}},
		{name: "one third", rows: rows(true, false), total: 3, want: progress.Summary{CompletedCount: 1, TotalLessons: 3, Percent: 33}},
		{name: "two thirds", rows: rows(true, true), total: 3, want: progress.Summary{CompletedCount: 2, TotalLessons: 3, Percent: 67}},
		{name: "all", rows: rows(true, true, true), total: 3, want: progress.Summary{CanClaim: true, CompletedCount: 3, TotalLessons: 3, Percent: 100}},
		{
			name: "lessons past the end are ignored", rows: rows(true, true, true, true), total: 2,
			want: progress.Summary{CanClaim: true, CompletedCount: 2, TotalLessons: 2, Percent: 100},
		},
		{
			name: "unknown course counts touched lessons", rows: rows(true, false, true),
			want: progress.Summary{CompletedCount: 2, TotalLessons: 3, Percent: 67},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, progress.Summarize(tt.rows, tt.total))
		})
	}
}

func TestService_Save(t *testing.T) {
	db := inmemdb.Open()
	svc := progress.NewService(inmemdb.NewTransactor(db), inmemdb.NewProgressRepository(db))
	ctx := context.Background()
	done, pos := true, 125

	created, err := svc.Save(ctx, "u1", "c1", progress.Update{LessonIndex: 1, LastPositionSeconds: &pos})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.Completed)
	assert.Equal(t, 125, created.LastPositionSeconds)

	updated, err := svc.Save(ctx, "u1", "c1", progress.Update{LessonIndex: 1, Completed: &done})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.True(t, updated.Completed)
	assert.Equal(t, 125, updated.LastPositionSeconds)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))

	_, err = svc.Save(ctx, "u1", "c1", progress.Update{LessonIndex: 0, Completed: &done})
	require.NoError(t, err)
	_, err = svc.Save(ctx, "u2", "c1", progress.Update{LessonIndex: 0})
	require.NoError(t, err)

	list, err := svc.List(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 0, list[0].LessonIndex)

	c := course.Course{ID: "c1", Lessons: make([]course.Lesson, 4)}
	summary, err := svc.Summarize(ctx, "u1", c)
	require.NoError(t, err)
	assert.Equal(t, progress.Summary{CompletedCount: 2, TotalLessons: 4, Percent: 50}, summary)
}

// racingRepo lets another request create the lesson row right after the first lookup.
type racingRepo struct {
	progress.Repository
	rival progress.Progress
	raced bool
}

func (r *racingRepo) GetProgress(
	ctx context.Context,
	userID, courseID string,
	lessonIndex int,
	exec ...core.DBExecutor,
) (progress.Progress, error) {
	if !r.raced {
		r.raced = true
		if _, err := r.Repository.CreateProgress(ctx, r.rival); err != nil {
			return progress.Progress{}, err
		}
		return progress.Progress{}, progress.ErrNotFound
	}
	return r.Repository.GetProgress(ctx, userID, courseID, lessonIndex, exec...)
}

func TestService_Save_concurrentCreate(t *testing.T) {
	db := inmemdb.Open()
	now := time.Now().UTC()
	repo := &racingRepo{
		Repository: inmemdb.NewProgressRepository(db),
		rival: progress.Progress{
			UserID: "u1", CourseID: "c1", LessonIndex: 2, Completed: true, LastPositionSeconds: 300,
			CreatedAt: now, UpdatedAt: now,
		},
	}
	svc := progress.NewService(inmemdb.NewTransactor(db), repo)
	pos := 120

	p, err := svc.Save(context.Background(), "u1", "c1", progress.Update{LessonIndex: 2, LastPositionSeconds: &pos})
	require.NoError(t, err)
	assert.True(t, repo.raced)
	assert.True(t, p.Completed, "fields left out of the update are kept")
	assert.Equal(t, 120, p.LastPositionSeconds)

	list, err := svc.List(context.Background(), "u1", "c1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)
	assert.True(t, list[0].Completed)
}
