package user

import (
	"context"
	"net/mail"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
)

var (
	// errors
	ErrNotFound             = errors.New("user not found")
	ErrEmailExists          = errors.New("an account with this email already exists")
	ErrAuthenticationFailed = errors.New("invalid email or password")
	ErrWrongPassword        = core.NewValidationError(errors.New("Current password is incorrect"))
	ErrInvalidResetToken    = core.NewValidationError(errors.New("Invalid or expired reset link. Please request a new one."))
	ErrNoPassword           = core.NewValidationError(errors.New("User has no password set"))
	ErrInvalidResetAction   = core.NewFieldValidationError("action", "action must be one of send_email, force_temp")
	ErrResetEmailFailed     = errors.New("Failed to send reset email. Check the email service configuration.")
	ErrTempEmailFailed      = errors.New("Password was reset but email failed to send. " +
		"Share the temporary password via another channel.")
)

// Admin reset actions
const (
	ResetActionSendEmail = "send_email"
	ResetActionForceTemp = "force_temp"
)

type (
	Repository interface {
		// CreateUser returns ErrEmailExists when the email is taken.
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on User.Email or User.Phone.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Summary, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		SetPro(ctx context.Context, id string, isPro bool, exec ...core.DBExecutor) error

		CreateResetToken(ctx context.Context, tok ResetToken, exec ...core.DBExecutor) (ResetToken, error)
		// GetResetToken returns ErrInvalidResetToken when the token is unknown.
		GetResetToken(ctx context.Context, token string, exec ...core.DBExecutor) (ResetToken, error)
		// LatestResetToken returns ErrInvalidResetToken when the user has no token.
		LatestResetToken(ctx context.Context, userID string, exec ...core.DBExecutor) (ResetToken, error)
		DeleteResetTokens(ctx context.Context, userID string, exec ...core.DBExecutor) error
	}

	Service interface {
		Register(ctx context.Context, nu NewUser) (User, error)
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Summary, error)
		Save(ctx context.Context, usr User) (User, error)
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)
		SetPro(ctx context.Context, id string, isPro bool, exec ...core.DBExecutor) error
		ChangePassword(ctx context.Context, usr User, data ChangePassword) error
		RequestPasswordReset(ctx context.Context, email string) error
		ValidateResetToken(ctx context.Context, token string) (User, error)
		ResetPassword(ctx context.Context, data ResetPassword) error
		AdminResetPassword(ctx context.Context, id, action string) error
	}

	service struct {
		conf    *core.Config
		tx      core.Transactor
		repo    Repository
		mailSvc core.EmailService
	}

	resetMailData struct {
		Email     string
		Link      string
		ExpiresIn string
	}

	tempPasswordMailData struct {
		Email    string
		Password string
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, tx core.Transactor, repo Repository, mailSvc core.EmailService) Service {
	return &service{conf: conf, tx: tx, repo: repo, mailSvc: mailSvc}
}

func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := core.NowFunc()
	usr := User{
		Email:     core.CleanString(nu.Email, true /* lower */),
		Phone:     core.CleanString(nu.Phone),
		Role:      RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if svc.conf.IsAdminEmail(usr.Email) {
		usr.Role = RoleAdmin
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if !usr.CheckPassword(pwd) {
		return User{}, ErrAuthenticationFailed
	}

	now := core.NowFunc()
	usr.LastLogin = &now
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Summary, error) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

// Save creates the user when it has no ID, updates it otherwise.
func (svc *service) Save(ctx context.Context, usr User) (User, error) {
	now := core.NowFunc()
	usr.Email = core.CleanString(usr.Email, true /* lower */)
	usr.UpdatedAt = now
	if usr.Role == "" {
		usr.Role = RoleStudent
	}
	if usr.ID == "" {
		usr.CreatedAt = now
		return svc.repo.CreateUser(ctx, usr)
	}
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetPro(ctx context.Context, id string, isPro bool, exec ...core.DBExecutor) error {
	return svc.repo.SetPro(ctx, id, isPro, exec...)
}

func (svc *service) ChangePassword(ctx context.Context, usr User, data ChangePassword) error {
	if !usr.CheckPassword(data.CurrentPassword) {
		return ErrWrongPassword
	}
	_, err := svc.SetPassword(ctx, usr, data.NewPassword)
	return errors.Wrap(err, "setting password")
}

// RequestPasswordReset emails a reset link to the owner of `email`.
// Unknown emails, accounts without a password and repeated requests within the cooldown are silently ignored.
func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "finding user by email")
	}
	if !usr.HasPassword() {
		return nil
	}

	latest, err := svc.repo.LatestResetToken(ctx, usr.ID)
	switch {
	case err == nil:
		if core.NowFunc().Sub(latest.CreatedAt) < svc.conf.PasswordResetCooldown {
			return nil
		}
	case errors.Cause(err) != ErrInvalidResetToken:
		return errors.Wrap(err, "finding latest reset token")
	}

	if err := svc.sendResetLink(ctx, usr); err != nil {
		return errors.Wrap(err, "sending reset link")
	}
	return nil
}

func (svc *service) sendResetLink(ctx context.Context, usr User) error {
	token, err := newResetToken()
	if err != nil {
		return err
	}
	now := core.NowFunc()

	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.DeleteResetTokens(ctx, usr.ID, exec); err != nil {
			return errors.Wrap(err, "deleting reset tokens")
		}
		_, err := svc.repo.CreateResetToken(ctx, ResetToken{
			UserID:    usr.ID,
			Token:     token,
			ExpiresAt: now.Add(svc.conf.PasswordResetTimeout),
			CreatedAt: now,
		}, exec)
		return errors.Wrap(err, "creating reset token")
	})
	if err != nil {
		return err
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Address: usr.Email}},
		Subject:      "Reset Your " + svc.conf.AppName + " Password",
		TemplateName: core.TmplPasswordReset,
		TemplateData: resetMailData{
			Email:     usr.Email,
			Link:      svc.conf.FrontendBaseURL + "/reset-password?token=" + url.QueryEscape(token),
			ExpiresIn: humanDuration(svc.conf.PasswordResetTimeout),
		},
	}
	if err := svc.mailSvc.Send(msg); err != nil {
		return errors.Wrap(ErrResetEmailFailed, err.Error())
	}
	return nil
}

// ValidateResetToken returns the owner of a usable reset token.
func (svc *service) ValidateResetToken(ctx context.Context, token string) (User, error) {
	token = core.CleanString(token)
	if len(token) < resetTokenMinLen {
		return User{}, ErrInvalidResetToken
	}
	tok, err := svc.repo.GetResetToken(ctx, token)
	if err != nil {
		return User{}, err
	}
	if tok.Expired(core.NowFunc()) {
		return User{}, ErrInvalidResetToken
	}
	usr, err := svc.GetByID(ctx, tok.UserID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidResetToken
		}
		return User{}, errors.Wrap(err, "finding token owner")
	}
	return usr, nil
}

func (svc *service) ResetPassword(ctx context.Context, data ResetPassword) error {
	usr, err := svc.ValidateResetToken(ctx, data.Token)
	if err != nil {
		return err
	}
	if err := usr.SetPassword(data.NewPassword); err != nil {
		return err
	}
	usr.UpdatedAt = core.NowFunc()

	return svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.UpdateUser(ctx, usr, exec); err != nil {
			return errors.Wrap(err, "updating password")
		}
		return errors.Wrap(svc.repo.DeleteResetTokens(ctx, usr.ID, exec), "deleting reset tokens")
	})
}

// AdminResetPassword either emails a reset link (send_email, the default)
// or replaces the password by a temporary one sent to the user (force_temp).
func (svc *service) AdminResetPassword(ctx context.Context, id, action string) error {
	if action == "" {
		action = ResetActionSendEmail
	}
	if action != ResetActionSendEmail && action != ResetActionForceTemp {
		return ErrInvalidResetAction
	}

	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !usr.HasPassword() {
		return ErrNoPassword
	}

	if action == ResetActionSendEmail {
		return svc.sendResetLink(ctx, usr)
	}

	tempPwd, err := newTemporaryPassword()
	if err != nil {
		return err
	}
	if _, err := svc.SetPassword(ctx, usr, tempPwd); err != nil {
		return errors.Wrap(err, "setting temporary password")
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Address: usr.Email}},
		Subject:      "Your " + svc.conf.AppName + " Temporary Password",
		TemplateName: core.TmplTemporaryPassword,
		TemplateData: tempPasswordMailData{Email: usr.Email, Password: tempPwd},
	}
	if err := svc.mailSvc.Send(msg); err != nil {
		return errors.Wrap(ErrTempEmailFailed, err.Error())
	}
	return nil
}

func humanDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		if h := int(d / time.Hour); h != 1 {
			return strconv.Itoa(h) + " hours"
		}
		return "1 hour"
	}
	return strconv.Itoa(int(d/time.Minute)) + " minutes"
}
