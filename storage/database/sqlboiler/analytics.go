// Package boiledrepos runs the dashboard reporting queries with sqlboiler.
package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/analytics"
)

type analyticsRepository struct {
	exec core.DBExecutor
}

var _ analytics.Repository = (*analyticsRepository)(nil) // interface compliance check

func NewAnalyticsRepository(exec core.DBExecutor) analytics.Repository {
	return &analyticsRepository{exec: exec}
}

func (repo analyticsRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo analyticsRepository) Users(ctx context.Context, exec ...core.DBExecutor) ([]analytics.UserRow, error) {
	var rows []analytics.UserRow
	err := queries.Raw(`SELECT id, is_pro, created_at FROM users ORDER BY created_at`).
		Bind(ctx, repo.getExec(exec), &rows)
	if err != nil {
		return nil, errors.Wrap(err, "reading users")
	}
	for i := range rows {
		rows[i].CreatedAt = rows[i].CreatedAt.UTC()
	}
	return rows, nil
}

func (repo analyticsRepository) Progress(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]analytics.ProgressRow, error) {
	q := `SELECT user_id, course_id, lesson_index, completed, last_position_seconds FROM user_progress`
	var args []interface{}
	if courseID != "" {
		q += ` WHERE course_id = $1`
		args = append(args, courseID)
	}

	var rows []analytics.ProgressRow
	if err := queries.Raw(q+` ORDER BY course_id, lesson_index`, args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "reading progress")
	}
	return rows, nil
}

func (repo analyticsRepository) Certificates(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]analytics.CertificateRow, error) {
	var rows []analytics.CertificateRow
	err := queries.Raw(`SELECT certificate_id, course_id, full_name, course_title, completion_date, created_at
		FROM certificates WHERE course_id = $1 ORDER BY created_at DESC`, courseID).
		Bind(ctx, repo.getExec(exec), &rows)
	if err != nil {
		return nil, errors.Wrap(err, "reading certificates")
	}
	for i := range rows {
		rows[i].CompletionDate = rows[i].CompletionDate.UTC()
		rows[i].CreatedAt = rows[i].CreatedAt.UTC()
	}
	return rows, nil
}

func (repo analyticsRepository) CertificateCounts(ctx context.Context, exec ...core.DBExecutor) (map[string]int, error) {
	var rows []struct {
		CourseID string `boil:"course_id"`
		Count    int    `boil:"count"`
	}
	err := queries.Raw(`SELECT course_id, COUNT(*) AS count FROM certificates GROUP BY course_id`).
		Bind(ctx, repo.getExec(exec), &rows)
	if err != nil {
		return nil, errors.Wrap(err, "counting certificates")
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.CourseID] = r.Count
	}
	return counts, nil
}

func (repo analyticsRepository) RequestCounts(ctx context.Context, exec ...core.DBExecutor) (analytics.RequestCounts, error) {
	var counts analytics.RequestCounts
	err := queries.Raw(`SELECT
			COUNT(*) FILTER (WHERE status = 'PENDING') AS pending,
			COUNT(*) FILTER (WHERE status = 'APPROVED') AS approved,
			COUNT(*) FILTER (WHERE status = 'REJECTED') AS rejected,
			COUNT(*) AS total
		FROM subscription_requests`).
		Bind(ctx, repo.getExec(exec), &counts)
	return counts, errors.Wrap(err, "counting requests")
}

func (repo analyticsRepository) Visits(ctx context.Context, exec ...core.DBExecutor) ([]analytics.Visit, error) {
	var rows []struct {
		ID              string      `boil:"id"`
		Path            string      `boil:"path"`
		UserID          null.String `boil:"user_id"`
		DurationSeconds null.Int    `boil:"duration_seconds"`
		CreatedAt       time.Time   `boil:"created_at"`
	}
	err := queries.Raw(`SELECT id, path, user_id, duration_seconds, created_at FROM visitor_sessions ORDER BY created_at`).
		Bind(ctx, repo.getExec(exec), &rows)
	if err != nil {
		return nil, errors.Wrap(err, "reading visits")
	}

	visits := make([]analytics.Visit, 0, len(rows))
	for _, r := range rows {
		visits = append(visits, analytics.Visit{
			ID:              r.ID,
			Path:            r.Path,
			UserID:          r.UserID.String,
			DurationSeconds: r.DurationSeconds.Ptr(),
			CreatedAt:       r.CreatedAt.UTC(),
		})
	}
	return visits, nil
}
