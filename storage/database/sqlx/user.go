package sqlxrepos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/strmangle"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
)

const userColumns = `id, email, phone, role, is_pro, password_hash, created_at, updated_at, last_login`

type (
	userRow struct {
		ID           string    `db:"id"`
		Email        string    `db:"email"`
		Phone        string    `db:"phone"`
		Role         string    `db:"role"`
		IsPro        bool      `db:"is_pro"`
		PasswordHash string    `db:"password_hash"`
		CreatedAt    null.Time `db:"created_at"`
		UpdatedAt    null.Time `db:"updated_at"`
		LastLogin    null.Time `db:"last_login"`
	}

	userSummaryRow struct {
		userRow
		RequestCount int `db:"request_count"`
	}

	resetTokenRow struct {
		ID        string    `db:"id"`
		UserID    string    `db:"user_id"`
		Token     string    `db:"token"`
		ExpiresAt null.Time `db:"expires_at"`
		CreatedAt null.Time `db:"created_at"`
	}
)

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Email:        usr.Email,
		Phone:        usr.Phone,
		Role:         usr.Role,
		IsPro:        usr.IsPro,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    null.TimeFrom(usr.CreatedAt.UTC()),
		UpdatedAt:    null.TimeFrom(usr.UpdatedAt.UTC()),
		LastLogin:    null.TimeFromPtr(usr.LastLogin),
	}
}

func (r userRow) user() user.User {
	usr := user.User{
		ID:           r.ID,
		Email:        r.Email,
		Phone:        r.Phone,
		Role:         r.Role,
		IsPro:        r.IsPro,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.Time.UTC(),
		UpdatedAt:    r.UpdatedAt.Time.UTC(),
	}
	if r.LastLogin.Valid {
		t := r.LastLogin.Time.UTC()
		usr.LastLogin = &t
	}
	return usr
}

func (r resetTokenRow) token() user.ResetToken {
	return user.ResetToken{
		ID:        r.ID,
		UserID:    r.UserID,
		Token:     r.Token,
		ExpiresAt: r.ExpiresAt.Time.UTC(),
		CreatedAt: r.CreatedAt.Time.UTC(),
	}
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{repository{db: db}}
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	row := toUserRow(usr)
	q := `INSERT INTO users (` + userColumns + `)
		VALUES (:id, :email, :phone, :role, :is_pro, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := sqlx.NamedExecContext(ctx, repo.ext(exec), q, row); err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var (
		row  userRow
		cond string
		arg  string
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		cond, arg = "id = $1", filter.ID
	case filter.Email != "":
		cond, arg = "email = $1", filter.Email
	default:
		return user.User{}, user.ErrNotFound
	}

	err := sqlx.GetContext(ctx, repo.ext(exec), &row, `SELECT `+userColumns+` FROM users WHERE `+cond, arg)
	if err != nil {
		return user.User{}, trapNoRows(err, user.ErrNotFound, "finding user")
	}
	return row.user(), nil
}

func (repo userRepository) QueryUsers(
	ctx context.Context,
	filter *user.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]user.Summary, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + itoa(len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			conds = append(conds, "(u.email ILIKE "+p+" OR u.phone ILIKE "+p+")")
		}
		if filter.Role != "" {
			conds = append(conds, "u.role = "+arg(filter.Role))
		}
		if filter.IsPro != nil {
			conds = append(conds, "u.is_pro = "+arg(*filter.IsPro))
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, "u.created_at >= "+arg(filter.CreatedFrom.UTC()))
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, "u.created_at <= "+arg(filter.CreatedTo.UTC()))
		}
	}

	q := `SELECT u.id, u.email, u.phone, u.role, u.is_pro, u.password_hash, u.created_at, u.updated_at, u.last_login,
			COUNT(r.id) AS request_count
		FROM users u
		LEFT JOIN subscription_requests r ON r.user_id = u.id`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " GROUP BY u.id ORDER BY " + core.OrderingClause(normalizeOrdering(ordering), user.OrderingFields, "created_at DESC")

	var rows []userSummaryRow
	if err := sqlx.SelectContext(ctx, repo.ext(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.Summary, 0, len(rows))
	for _, r := range rows {
		users = append(users, user.Summary{User: r.user(), RequestCount: r.RequestCount})
	}
	return users, nil
}

// normalizeOrdering accepts camelCase fields (createdAt) as well as snake_case ones.
func normalizeOrdering(ordering []core.DBOrdering) []core.DBOrdering {
	res := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		res = append(res, core.DBOrdering{Field: strmangle.SnakeCase(ord.Field), Ascending: ord.Ascending})
	}
	return res
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := toUserRow(usr)
	q := `UPDATE users SET email = :email, phone = :phone, role = :role, is_pro = :is_pro,
			password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.ext(exec), q, row)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err := checkAffected(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return row.user(), nil
}

func (repo userRepository) SetPro(ctx context.Context, id string, isPro bool, exec ...core.DBExecutor) error {
	if _, err := uuid.Parse(id); err != nil {
		return user.ErrNotFound
	}
	res, err := repo.ext(exec).ExecContext(ctx,
		`UPDATE users SET is_pro = $1, updated_at = $2 WHERE id = $3`, isPro, core.NowFunc(), id)
	if err != nil {
		return errors.Wrap(err, "setting pro")
	}
	return checkAffected(res, user.ErrNotFound)
}

func (repo userRepository) CreateResetToken(ctx context.Context, tok user.ResetToken, exec ...core.DBExecutor) (user.ResetToken, error) {
	tok.ID = uuid.New().String()
	_, err := repo.ext(exec).ExecContext(ctx,
		`INSERT INTO password_reset_tokens (id, user_id, token, expires_at, created_at) VALUES ($1, $2, $3, $4, $5)`,
		tok.ID, tok.UserID, tok.Token, tok.ExpiresAt.UTC(), tok.CreatedAt.UTC())
	if err != nil {
		return user.ResetToken{}, errors.Wrap(err, "inserting reset token")
	}
	return tok, nil
}

func (repo userRepository) GetResetToken(ctx context.Context, token string, exec ...core.DBExecutor) (user.ResetToken, error) {
	var row resetTokenRow
	err := sqlx.GetContext(ctx, repo.ext(exec), &row,
		`SELECT id, user_id, token, expires_at, created_at FROM password_reset_tokens WHERE token = $1`, token)
	if err != nil {
		return user.ResetToken{}, trapNoRows(err, user.ErrInvalidResetToken, "finding reset token")
	}
	return row.token(), nil
}

func (repo userRepository) LatestResetToken(ctx context.Context, userID string, exec ...core.DBExecutor) (user.ResetToken, error) {
	var row resetTokenRow
	err := sqlx.GetContext(ctx, repo.ext(exec), &row,
		`SELECT id, user_id, token, expires_at, created_at FROM password_reset_tokens
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`, userID)
	if err != nil {
		return user.ResetToken{}, trapNoRows(err, user.ErrInvalidResetToken, "finding latest reset token")
	}
	return row.token(), nil
}

func (repo userRepository) DeleteResetTokens(ctx context.Context, userID string, exec ...core.DBExecutor) error {
	_, err := repo.ext(exec).ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, userID)
	return errors.Wrap(err, "deleting reset tokens")
}
