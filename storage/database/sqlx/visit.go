package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/analytics"
)

type visitRepository struct {
	repository
}

var _ analytics.VisitRepository = (*visitRepository)(nil)

func NewVisitRepository(db *sqlx.DB) analytics.VisitRepository {
	return &visitRepository{repository{db: db}}
}

// CreateVisit records the visit as anonymous when its user no longer exists.
// A failed insert aborts a transaction, so the retry only runs on the pool.
func (repo visitRepository) CreateVisit(ctx context.Context, v analytics.Visit, exec ...core.DBExecutor) (analytics.Visit, error) {
	err := repo.insertVisit(ctx, v, exec)
	if err != nil && len(exec) == 0 && v.UserID != "" && isForeignKeyViolation(err) {
		v.UserID = ""
		err = repo.insertVisit(ctx, v, exec)
	}
	if err != nil {
		return analytics.Visit{}, errors.Wrap(err, "inserting visit")
	}
	return v, nil
}

func (repo visitRepository) insertVisit(ctx context.Context, v analytics.Visit, exec []core.DBExecutor) error {
	_, err := repo.ext(exec).ExecContext(ctx,
		`INSERT INTO visitor_sessions (id, path, user_id, duration_seconds, created_at) VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.Path, null.NewString(v.UserID, v.UserID != ""), null.IntFromPtr(v.DurationSeconds), v.CreatedAt.UTC())
	return err
}

func (repo visitRepository) EndVisit(ctx context.Context, id string, durationSeconds int, exec ...core.DBExecutor) error {
	res, err := repo.ext(exec).ExecContext(ctx,
		`UPDATE visitor_sessions SET duration_seconds = $1 WHERE id = $2`, durationSeconds, id)
	if err != nil {
		return errors.Wrap(err, "ending visit")
	}
	return checkAffected(res, analytics.ErrVisitNotFound)
}
