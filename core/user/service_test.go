package user_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/services/email"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/storage/database/inmem"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/tests"
)

const strongPwd = "Gr@nd-Kulmis-42"

var tokenRegex = regexp.MustCompile(`/reset-password\?token=([^\s"<&]+)`)

func newService(t *testing.T) (user.Service, user.Repository) {
	conf := core.NewTestConfig()
	db := inmemdb.Open()
	repo := inmemdb.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, testutil.NewLogger(conf))
	emailsvc.ResetSentMessages()
	return user.NewService(conf, inmemdb.NewTransactor(db), repo, mailSvc), repo
}

// travel moves core.NowFunc by d for the rest of the test.
func travel(t *testing.T, d time.Duration) {
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return orig().Add(d) }
	t.Cleanup(func() { core.NowFunc = orig })
}

func lastResetToken(t *testing.T) string {
	sent := emailsvc.Sent()
	require.NotEmpty(t, sent)
	m := tokenRegex.FindStringSubmatch(sent[len(sent)-1].TextContent)
	require.Len(t, m, 2)
	return m[1]
}

func TestService_Register(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	usr, err := svc.Register(ctx, user.NewUser{Email: " Hero@Test.so ", Password: strongPwd})
	require.NoError(t, err)
	assert.Equal(t, "hero@test.so", usr.Email)
	assert.Equal(t, user.RoleStudent, usr.Role)
	assert.False(t, usr.IsPro)
	assert.True(t, usr.CheckPassword(strongPwd))

	_, err = svc.Register(ctx, user.NewUser{Email: "hero@test.so", Password: strongPwd})
	assert.Equal(t, user.ErrEmailExists, errors.Cause(err))

	admin, err := svc.Register(ctx, user.NewUser{Email: "BOSS@kulmis.test", Password: strongPwd})
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, admin.Role)
}

func TestService_Authenticate(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	testutil.CreateUser(t, repo, "hero@test.so", strongPwd, "", false)
	testutil.CreateUser(t, repo, "nopwd@test.so", "", "", false)

	tests := []struct {
		name    string
		email   string
		pwd     string
		wantErr error
	}{
		{name: "unknown email", email: "ghost@test.so", pwd: strongPwd, wantErr: user.ErrAuthenticationFailed},
		{name: "wrong password", email: "hero@test.so", pwd: "nope", wantErr: user.ErrAuthenticationFailed},
		{name: "no password", email: "nopwd@test.so", pwd: "", wantErr: user.ErrAuthenticationFailed},
		{name: "ok", email: " HERO@test.so", pwd: strongPwd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := svc.Authenticate(ctx, tt.email, tt.pwd)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, usr.LastLogin)
			assert.WithinDuration(t, time.Now(), *usr.LastLogin, time.Minute)
		})
	}
}

func TestService_ChangePassword(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "hero@test.so", strongPwd, "", false)

	err := svc.ChangePassword(ctx, usr, user.ChangePassword{CurrentPassword: "nope", NewPassword: "N3w-Kulmis-pwd"})
	assert.Equal(t, user.ErrWrongPassword, err)

	require.NoError(t, svc.ChangePassword(ctx, usr, user.ChangePassword{CurrentPassword: strongPwd, NewPassword: "N3w-Kulmis-pwd"}))
	refreshed, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.CheckPassword("N3w-Kulmis-pwd"))
}

func TestService_passwordReset(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "hero@test.so", strongPwd, "", false)
	testutil.CreateUser(t, repo, "nopwd@test.so", "", "", false)

	t.Run("unknown or password-less accounts are ignored", func(t *testing.T) {
		require.NoError(t, svc.RequestPasswordReset(ctx, "ghost@test.so"))
		require.NoError(t, svc.RequestPasswordReset(ctx, "nopwd@test.so"))
		assert.Empty(t, emailsvc.Sent())
	})

	require.NoError(t, svc.RequestPasswordReset(ctx, "Hero@Test.so"))
	first := lastResetToken(t)

	t.Run("cooldown", func(t *testing.T) {
		require.NoError(t, svc.RequestPasswordReset(ctx, usr.Email))
		assert.Len(t, emailsvc.Sent(), 1)
	})

	owner, err := svc.ValidateResetToken(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, usr.ID, owner.ID)

	t.Run("a new link replaces the previous one", func(t *testing.T) {
		travel(t, 3*time.Minute)
		require.NoError(t, svc.RequestPasswordReset(ctx, usr.Email))
		require.Len(t, emailsvc.Sent(), 2)

		_, err := svc.ValidateResetToken(ctx, first)
		assert.Equal(t, user.ErrInvalidResetToken, errors.Cause(err))
	})

	second := lastResetToken(t)

	t.Run("invalid tokens", func(t *testing.T) {
		for _, tok := range []string{"", "short", first + "x"} {
			_, err := svc.ValidateResetToken(ctx, tok)
			assert.Equal(t, user.ErrInvalidResetToken, errors.Cause(err), tok)
		}
	})

	t.Run("expired", func(t *testing.T) {
		travel(t, 2*time.Hour)
		_, err := svc.ValidateResetToken(ctx, second)
		assert.Equal(t, user.ErrInvalidResetToken, errors.Cause(err))
	})

	require.NoError(t, svc.ResetPassword(ctx, user.ResetPassword{Token: second, NewPassword: "N3w-Kulmis-pwd"}))
	refreshed, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.CheckPassword("N3w-Kulmis-pwd"))

	err = svc.ResetPassword(ctx, user.ResetPassword{Token: second, NewPassword: "An0ther-pwd!"})
	assert.Equal(t, user.ErrInvalidResetToken, errors.Cause(err), "tokens are single use")
}

func TestService_AdminResetPassword(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "hero@test.so", strongPwd, "", false)
	noPwd := testutil.CreateUser(t, repo, "nopwd@test.so", "", "", false)

	assert.Equal(t, user.ErrInvalidResetAction, svc.AdminResetPassword(ctx, usr.ID, "delete"))
	assert.Equal(t, user.ErrNotFound, errors.Cause(svc.AdminResetPassword(ctx, "ghost", "")))
	assert.Equal(t, user.ErrNoPassword, svc.AdminResetPassword(ctx, noPwd.ID, user.ResetActionForceTemp))
	assert.Empty(t, emailsvc.Sent())

	require.NoError(t, svc.AdminResetPassword(ctx, usr.ID, ""))
	tok := lastResetToken(t)
	_, err := svc.ValidateResetToken(ctx, tok)
	assert.NoError(t, err)

	require.NoError(t, svc.AdminResetPassword(ctx, usr.ID, user.ResetActionForceTemp))
	sent := emailsvc.Sent()
	require.Len(t, sent, 2)
	m := regexp.MustCompile(`temporary password is: (\S+)`).FindStringSubmatch(sent[1].TextContent)
	require.Len(t, m, 2)

	refreshed, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.False(t, refreshed.CheckPassword(strongPwd))
	assert.True(t, refreshed.CheckPassword(m[1]), "the emailed password works")
}
