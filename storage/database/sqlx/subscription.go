package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/subscription"
)

const requestColumns = `r.id, r.user_id, r.type, r.status, r.message, r.full_name, r.phone, r.payment_number,
	r.proof_image_url, r.admin_note, r.reviewed_at, r.reviewed_by, r.created_at, r.updated_at`

type requestRow struct {
	ID            string      `db:"id"`
	UserID        string      `db:"user_id"`
	Type          string      `db:"type"`
	Status        string      `db:"status"`
	Message       string      `db:"message"`
	FullName      string      `db:"full_name"`
	Phone         string      `db:"phone"`
	PaymentNumber string      `db:"payment_number"`
	ProofImageURL string      `db:"proof_image_url"`
	AdminNote     string      `db:"admin_note"`
	ReviewedAt    null.Time   `db:"reviewed_at"`
	ReviewedBy    null.String `db:"reviewed_by"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`

	UserEmail null.String `db:"user_email"`
	UserPhone null.String `db:"user_phone"`
	UserIsPro null.Bool   `db:"user_is_pro"`
}

func (r requestRow) request() subscription.Request {
	req := subscription.Request{
		ID:            r.ID,
		UserID:        r.UserID,
		Type:          r.Type,
		Status:        r.Status,
		Message:       r.Message,
		FullName:      r.FullName,
		Phone:         r.Phone,
		PaymentNumber: r.PaymentNumber,
		ProofImageURL: r.ProofImageURL,
		AdminNote:     r.AdminNote,
		ReviewedBy:    r.ReviewedBy.String,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	if r.ReviewedAt.Valid {
		t := r.ReviewedAt.Time.UTC()
		req.ReviewedAt = &t
	}
	if r.UserEmail.Valid {
		req.User = &subscription.Requester{
			ID:    r.UserID,
			Email: r.UserEmail.String,
			Phone: r.UserPhone.String,
			IsPro: r.UserIsPro.Bool,
		}
	}
	return req
}

type requestRepository struct {
	repository
}

var _ subscription.Repository = (*requestRepository)(nil)

func NewRequestRepository(db *sqlx.DB) subscription.Repository {
	return &requestRepository{repository{db: db}}
}

func (repo requestRepository) CreateRequest(ctx context.Context, req subscription.Request, exec ...core.DBExecutor) (subscription.Request, error) {
	req.ID = uuid.New().String()
	_, err := repo.ext(exec).ExecContext(ctx,
		`INSERT INTO subscription_requests (id, user_id, type, status, message, full_name, phone, payment_number,
			proof_image_url, admin_note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		req.ID, req.UserID, req.Type, req.Status, req.Message, req.FullName, req.Phone, req.PaymentNumber,
		req.ProofImageURL, req.AdminNote, req.CreatedAt.UTC(), req.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err, "subscription_requests_one_pending_idx") {
			return subscription.Request{}, subscription.ErrRequestPending
		}
		return subscription.Request{}, errors.Wrap(err, "inserting request")
	}
	return req, nil
}

func (repo requestRepository) GetRequest(ctx context.Context, id string, exec ...core.DBExecutor) (subscription.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return subscription.Request{}, subscription.ErrNotFound
	}
	var row requestRow
	err := sqlx.GetContext(ctx, repo.ext(exec), &row,
		`SELECT `+requestColumns+`, u.email AS user_email, u.phone AS user_phone, u.is_pro AS user_is_pro
		FROM subscription_requests r LEFT JOIN users u ON u.id = r.user_id
		WHERE r.id = $1`, id)
	if err != nil {
		return subscription.Request{}, trapNoRows(err, subscription.ErrNotFound, "finding request")
	}
	return row.request(), nil
}

func (repo requestRepository) QueryRequests(
	ctx context.Context,
	filter subscription.QueryFilter,
	exec ...core.DBExecutor,
) ([]subscription.Request, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, "r.user_id = $"+itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, "r.status = $"+itoa(len(args)))
	}

	q := `SELECT ` + requestColumns + `, u.email AS user_email, u.phone AS user_phone, u.is_pro AS user_is_pro
		FROM subscription_requests r LEFT JOIN users u ON u.id = r.user_id`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY r.created_at DESC"

	var rows []requestRow
	if err := sqlx.SelectContext(ctx, repo.ext(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying requests")
	}
	reqs := make([]subscription.Request, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.request())
	}
	return reqs, nil
}

// ReviewRequest only moves PENDING requests, so two admins reviewing at once cannot both win.
func (repo requestRepository) ReviewRequest(ctx context.Context, req subscription.Request, exec ...core.DBExecutor) (subscription.Request, error) {
	res, err := repo.ext(exec).ExecContext(ctx,
		`UPDATE subscription_requests
		SET status = $1, admin_note = $2, reviewed_at = $3, reviewed_by = $4, updated_at = $5
		WHERE id = $6 AND status = $7`,
		req.Status, req.AdminNote, null.TimeFromPtr(req.ReviewedAt), null.NewString(req.ReviewedBy, req.ReviewedBy != ""),
		req.UpdatedAt.UTC(), req.ID, subscription.StatusPending)
	if err != nil {
		return subscription.Request{}, errors.Wrap(err, "reviewing request")
	}
	if err := checkAffected(res, subscription.ErrAlreadyReviewed); err != nil {
		return subscription.Request{}, err
	}
	return req, nil
}
