package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/certificate"
)

const certificateColumns = `id, certificate_id, user_id, course_id, course_title, full_name, student_id, completion_date, created_at`

type certificateRow struct {
	ID             string    `db:"id"`
	CertificateID  string    `db:"certificate_id"`
	UserID         string    `db:"user_id"`
	CourseID       string    `db:"course_id"`
	CourseTitle    string    `db:"course_title"`
	FullName       string    `db:"full_name"`
	StudentID      string    `db:"student_id"`
	CompletionDate time.Time `db:"completion_date"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r certificateRow) certificate() certificate.Certificate {
	return certificate.Certificate{
		ID:             r.ID,
		CertificateID:  r.CertificateID,
		UserID:         r.UserID,
		CourseID:       r.CourseID,
		CourseTitle:    r.CourseTitle,
		FullName:       r.FullName,
		StudentID:      r.StudentID,
		CompletionDate: r.CompletionDate.UTC(),
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

type certificateRepository struct {
	repository
}

var _ certificate.Repository = (*certificateRepository)(nil)

func NewCertificateRepository(db *sqlx.DB) certificate.Repository {
	return &certificateRepository{repository{db: db}}
}

// CreateCertificate returns the existing certificate when the user already has one for the course.
func (repo certificateRepository) CreateCertificate(
	ctx context.Context,
	cert certificate.Certificate,
	exec ...core.DBExecutor,
) (certificate.Certificate, error) {
	cert.ID = uuid.New().String()
	var row certificateRow
	err := sqlx.GetContext(ctx, repo.ext(exec), &row,
		`INSERT INTO certificates (`+certificateColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, course_id) DO UPDATE SET user_id = certificates.user_id
		RETURNING `+certificateColumns,
		cert.ID, cert.CertificateID, cert.UserID, cert.CourseID, cert.CourseTitle, cert.FullName, cert.StudentID,
		cert.CompletionDate.UTC(), cert.CreatedAt.UTC())
	if err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "inserting certificate")
	}
	return row.certificate(), nil
}

func (repo certificateRepository) GetCertificate(ctx context.Context, certificateID string, exec ...core.DBExecutor) (certificate.Certificate, error) {
	if _, err := uuid.Parse(certificateID); err != nil {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	var row certificateRow
	err := sqlx.GetContext(ctx, repo.ext(exec), &row,
		`SELECT `+certificateColumns+` FROM certificates WHERE certificate_id = $1`, certificateID)
	if err != nil {
		return certificate.Certificate{}, trapNoRows(err, certificate.ErrNotFound, "finding certificate")
	}
	return row.certificate(), nil
}

func (repo certificateRepository) FindCertificate(
	ctx context.Context,
	userID, courseID string,
	exec ...core.DBExecutor,
) (certificate.Certificate, error) {
	var row certificateRow
	err := sqlx.GetContext(ctx, repo.ext(exec), &row,
		`SELECT `+certificateColumns+` FROM certificates WHERE user_id = $1 AND course_id = $2`, userID, courseID)
	if err != nil {
		return certificate.Certificate{}, trapNoRows(err, certificate.ErrNotFound, "finding user certificate")
	}
	return row.certificate(), nil
}

func (repo certificateRepository) QueryCertificates(
	ctx context.Context,
	filter certificate.QueryFilter,
	exec ...core.DBExecutor,
) ([]certificate.Certificate, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, "user_id = $"+itoa(len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conds = append(conds, "course_id = $"+itoa(len(args)))
	}
	q := `SELECT ` + certificateColumns + ` FROM certificates`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC"

	var rows []certificateRow
	if err := sqlx.SelectContext(ctx, repo.ext(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying certificates")
	}
	certs := make([]certificate.Certificate, 0, len(rows))
	for _, r := range rows {
		certs = append(certs, r.certificate())
	}
	return certs, nil
}
