package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/course"
)

const courseColumns = `id, slug, title, description, thumbnail_url, category, level, access_type, lessons, created_at, updated_at`

type courseRow struct {
	ID           string         `db:"id"`
	Slug         string         `db:"slug"`
	Title        string         `db:"title"`
	Description  string         `db:"description"`
	ThumbnailURL string         `db:"thumbnail_url"`
	Category     string         `db:"category"`
	Level        string         `db:"level"`
	AccessType   string         `db:"access_type"`
	Lessons      types.JSONText `db:"lessons"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func toCourseRow(c course.Course) (courseRow, error) {
	lessons := c.Lessons
	if lessons == nil {
		lessons = []course.Lesson{}
	}
	data, err := json.Marshal(lessons)
	if err != nil {
		return courseRow{}, errors.Wrap(err, "encoding lessons")
	}
	return courseRow{
		ID:           c.ID,
		Slug:         c.Slug,
		Title:        c.Title,
		Description:  c.Description,
		ThumbnailURL: c.ThumbnailURL,
		Category:     c.Category,
		Level:        c.Level,
		AccessType:   c.AccessType,
		Lessons:      types.JSONText(data),
		CreatedAt:    c.CreatedAt.UTC(),
		UpdatedAt:    c.UpdatedAt.UTC(),
	}, nil
}

func (r courseRow) course() (course.Course, error) {
	c := course.Course{
		ID:           r.ID,
		Slug:         r.Slug,
		Title:        r.Title,
		Description:  r.Description,
		ThumbnailURL: r.ThumbnailURL,
		Category:     r.Category,
		Level:        r.Level,
		AccessType:   r.AccessType,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if err := r.Lessons.Unmarshal(&c.Lessons); err != nil {
		return course.Course{}, errors.Wrapf(err, "decoding lessons of %s", r.ID)
	}
	return c, nil
}

type courseRepository struct {
	repository
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{repository{db: db}}
}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	c.ID = uuid.New().String()
	row, err := toCourseRow(c)
	if err != nil {
		return course.Course{}, err
	}
	q := `INSERT INTO courses (` + courseColumns + `) VALUES (:id, :slug, :title, :description, :thumbnail_url,
		:category, :level, :access_type, :lessons, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.ext(exec), q, row); err != nil {
		if isUniqueViolation(err, "courses_slug_key") {
			return course.Course{}, course.ErrSlugExists
		}
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, slugOrID string, exec ...core.DBExecutor) (course.Course, error) {
	var row courseRow
	var err error
	if _, perr := uuid.Parse(slugOrID); perr == nil {
		err = sqlx.GetContext(ctx, repo.ext(exec), &row, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, slugOrID)
	} else {
		err = sqlx.GetContext(ctx, repo.ext(exec), &row, `SELECT `+courseColumns+` FROM courses WHERE slug = $1`, slugOrID)
	}
	if err != nil {
		return course.Course{}, trapNoRows(err, course.ErrNotFound, "finding course")
	}
	return row.course()
}

func (repo courseRepository) QueryCourses(ctx context.Context, exec ...core.DBExecutor) ([]course.Course, error) {
	var rows []courseRow
	if err := sqlx.SelectContext(ctx, repo.ext(exec), &rows,
		`SELECT `+courseColumns+` FROM courses ORDER BY created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		c, err := r.course()
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	row, err := toCourseRow(c)
	if err != nil {
		return course.Course{}, err
	}
	q := `UPDATE courses SET slug = :slug, title = :title, description = :description, thumbnail_url = :thumbnail_url,
			category = :category, level = :level, access_type = :access_type, lessons = :lessons, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.ext(exec), q, row)
	if err != nil {
		if isUniqueViolation(err, "courses_slug_key") {
			return course.Course{}, course.ErrSlugExists
		}
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if err := checkAffected(res, course.ErrNotFound); err != nil {
		return course.Course{}, err
	}
	return c, nil
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.ext(exec).ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return checkAffected(res, course.ErrNotFound)
}

func (repo courseRepository) CreateLessonDownload(ctx context.Context, d course.LessonDownload, exec ...core.DBExecutor) error {
	_, err := repo.ext(exec).ExecContext(ctx,
		`INSERT INTO lesson_downloads (id, user_id, course_id, lesson_index, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), d.UserID, d.CourseID, d.LessonIndex, d.CreatedAt.UTC())
	return errors.Wrap(err, "inserting lesson download")
}
