package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/progress"
)

const progressColumns = `id, user_id, course_id, lesson_index, completed, last_position_seconds, created_at, updated_at`

type progressRepository struct {
	repository
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *sqlx.DB) progress.Repository {
	return &progressRepository{repository{db: db}}
}

type progressRow struct {
	ID                  string    `db:"id"`
	UserID              string    `db:"user_id"`
	CourseID            string    `db:"course_id"`
	LessonIndex         int       `db:"lesson_index"`
	Completed           bool      `db:"completed"`
	LastPositionSeconds int       `db:"last_position_seconds"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func (r progressRow) progress() progress.Progress {
	return progress.Progress{
		ID:                  r.ID,
		UserID:              r.UserID,
		CourseID:            r.CourseID,
		LessonIndex:         r.LessonIndex,
		Completed:           r.Completed,
		LastPositionSeconds: r.LastPositionSeconds,
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
}

func (repo progressRepository) ListProgress(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) ([]progress.Progress, error) {
	var rows []progressRow
	err := sqlx.SelectContext(ctx, repo.ext(exec), &rows,
		`SELECT `+progressColumns+` FROM user_progress WHERE user_id = $1 AND course_id = $2 ORDER BY lesson_index`,
		userID, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "listing progress")
	}
	res := make([]progress.Progress, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.progress())
	}
	return res, nil
}

func (repo progressRepository) GetProgress(
	ctx context.Context,
	userID, courseID string,
	lessonIndex int,
	exec ...core.DBExecutor,
) (progress.Progress, error) {
	var row progressRow
	err := sqlx.GetContext(ctx, repo.ext(exec), &row,
		`SELECT `+progressColumns+` FROM user_progress WHERE user_id = $1 AND course_id = $2 AND lesson_index = $3`,
		userID, courseID, lessonIndex)
	if err != nil {
		return progress.Progress{}, trapNoRows(err, progress.ErrNotFound, "finding progress")
	}
	return row.progress(), nil
}

// CreateProgress leaves an existing row untouched, the service then updates it field by field.
func (repo progressRepository) CreateProgress(ctx context.Context, p progress.Progress, exec ...core.DBExecutor) (progress.Progress, error) {
	p.ID = uuid.New().String()
	err := sqlx.GetContext(ctx, repo.ext(exec), &p.ID,
		`INSERT INTO user_progress (`+progressColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, course_id, lesson_index) DO NOTHING
		RETURNING id`,
		p.ID, p.UserID, p.CourseID, p.LessonIndex, p.Completed, p.LastPositionSeconds, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return progress.Progress{}, trapNoRows(err, progress.ErrExists, "inserting progress")
	}
	return p, nil
}

func (repo progressRepository) UpdateProgress(ctx context.Context, p progress.Progress, exec ...core.DBExecutor) (progress.Progress, error) {
	res, err := repo.ext(exec).ExecContext(ctx,
		`UPDATE user_progress SET completed = $1, last_position_seconds = $2, updated_at = $3 WHERE id = $4`,
		p.Completed, p.LastPositionSeconds, p.UpdatedAt.UTC(), p.ID)
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "updating progress")
	}
	if err := checkAffected(res, progress.ErrNotFound); err != nil {
		return progress.Progress{}, err
	}
	return p, nil
}
