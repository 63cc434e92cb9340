package progress

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/course"
)

var (
	ErrNotFound = errors.New("progress not found")
	ErrExists   = errors.New("progress already exists")
)

// Progress is the state of one lesson for one user.
type Progress struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	CourseID            string    `json:"course_id"`
	LessonIndex         int       `json:"lesson_index"`
	Completed           bool      `json:"completed"`
	LastPositionSeconds int       `json:"last_position_seconds"`
	CreatedAt           time.Time `json:"created_at"` // UTC
	UpdatedAt           time.Time `json:"updated_at"` // UTC
}

// Update only changes the fields that are set.
type Update struct {
	LessonIndex         int   `json:"lesson_index" validate:"min=0"`
	Completed           *bool `json:"completed"`
	LastPositionSeconds *int  `json:"last_position_seconds" validate:"omitempty,min=0"`
}

// Summary tells how far a user went in a course.
type Summary struct {
	CanClaim       bool `json:"can_claim"`
	CompletedCount int  `json:"completed_count"`
	TotalLessons   int  `json:"total_lessons"`
	Percent        int  `json:"percent"`
}

type (
	Repository interface {
		// ListProgress returns the rows of a user in a course by ascending lesson index.
		ListProgress(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) ([]Progress, error)
		// GetProgress returns ErrNotFound when the lesson was never touched.
		GetProgress(ctx context.Context, userID, courseID string, lessonIndex int, exec ...core.DBExecutor) (Progress, error)
		// CreateProgress returns ErrExists when the row was created meanwhile.
		CreateProgress(ctx context.Context, p Progress, exec ...core.DBExecutor) (Progress, error)
		UpdateProgress(ctx context.Context, p Progress, exec ...core.DBExecutor) (Progress, error)
	}

	Service interface {
		List(ctx context.Context, userID, courseID string) ([]Progress, error)
		Save(ctx context.Context, userID, courseID string, upd Update) (Progress, error)
		Summarize(ctx context.Context, userID string, c course.Course) (Summary, error)
	}

	service struct {
		tx   core.Transactor
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository) Service {
	return &service{tx: tx, repo: repo}
}

func (svc *service) List(ctx context.Context, userID, courseID string) ([]Progress, error) {
	return svc.repo.ListProgress(ctx, userID, courseID)
}

// Save upserts the progress of (user, course, lesson).
// New rows start uncompleted at position 0 before the update is applied.
func (svc *service) Save(ctx context.Context, userID, courseID string, upd Update) (Progress, error) {
	var p Progress
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		now := core.NowFunc()
		update := func() error {
			var err error
			p, err = svc.repo.GetProgress(ctx, userID, courseID, upd.LessonIndex, exec)
			if err != nil {
				return errors.Wrap(err, "finding progress")
			}
			apply(&p, upd)
			p.UpdatedAt = now
			p, err = svc.repo.UpdateProgress(ctx, p, exec)
			return errors.Wrap(err, "updating progress")
		}

		err := update()
		if errors.Cause(err) != ErrNotFound {
			return err
		}

		p = Progress{
			UserID:      userID,
			CourseID:    courseID,
			LessonIndex: upd.LessonIndex,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		apply(&p, upd)
		p, err = svc.repo.CreateProgress(ctx, p, exec)
		if errors.Cause(err) == ErrExists {
			// a concurrent request created the lesson row first
			return update()
		}
		return errors.Wrap(err, "creating progress")
	})
	return p, err
}

func apply(p *Progress, upd Update) {
	if upd.Completed != nil {
		p.Completed = *upd.Completed
	}
	if upd.LastPositionSeconds != nil {
		p.LastPositionSeconds = *upd.LastPositionSeconds
	}
}

// Summarize counts the completed lessons of a course.
// Courses without lessons in the catalog fall back to the lessons the user touched.
func (svc *service) Summarize(ctx context.Context, userID string, c course.Course) (Summary, error) {
	rows, err := svc.repo.ListProgress(ctx, userID, c.ID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "listing progress")
	}
	return Summarize(rows, len(c.Lessons)), nil
}

// Summarize reduces progress rows against the number of lessons of the course.
// When totalLessons is 0 every touched lesson counts.
func Summarize(rows []Progress, totalLessons int) Summary {
	var completed, touched int
	for _, p := range rows {
		if totalLessons > 0 && p.LessonIndex >= totalLessons {
			continue
		}
		touched++
		if p.Completed {
			completed++
		}
	}
	if totalLessons == 0 {
		totalLessons = touched
	}

	s := Summary{CompletedCount: completed, TotalLessons: totalLessons}
	if totalLessons > 0 {
		s.Percent = int(math.Round(float64(completed) / float64(totalLessons) * 100))
		s.CanClaim = completed == totalLessons
	}
	return s
}
