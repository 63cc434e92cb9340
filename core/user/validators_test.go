package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
)

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	LoadCommonPasswords(nil)
	require.NotEmpty(t, commonPasswords)
	return validate
}

// fieldTags maps the failing fields to their tags.
func fieldTags(t *testing.T, err error) map[string]string {
	t.Helper()
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok, "unexpected error %v", err)
	tags := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		tags[fe.Field()] = fe.Tag()
	}
	return tags
}

func TestNewUser_Validate(t *testing.T) {
	validate := newValidator(t)

	tests := []struct {
		name string
		nu   NewUser
		want map[string]string
	}{
		{name: "required", nu: NewUser{}, want: map[string]string{"email": "required", "password": "required"}},
		{name: "invalid email", nu: NewUser{Email: "hero", Password: "Gr@nd-Kulmis-42"}, want: map[string]string{"email": "email"}},
		{name: "too short", nu: NewUser{Email: "hero@test.so", Password: "Sh0rt!"}, want: map[string]string{"password": pwdMinLenTag}},
		{name: "whitespace", nu: NewUser{Email: "hero@test.so", Password: "Gr@nd Kulmis 42"}, want: map[string]string{"password": pwdNoSpaceTag}},
		{name: "numeric", nu: NewUser{Email: "hero@test.so", Password: "1234567890"}, want: map[string]string{"password": pwdNotAllNumTag}},
		{name: "like the email", nu: NewUser{Email: "kulmisfan@test.so", Password: "kulmisfan1"}, want: map[string]string{"password": pwdAttrSimTag}},
		{name: "common", nu: NewUser{Email: "hero@test.so", Password: "Password1"}, want: map[string]string{"password": pwdNoCommonTag}},
		{name: "valid", nu: NewUser{Email: " Hero@Test.so ", Password: "Gr@nd-Kulmis-42"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := tt.nu
			assert.Equal(t, tt.want, fieldTags(t, nu.Validate(validate)))
		})
	}

	t.Run("email is cleaned", func(t *testing.T) {
		nu := NewUser{Email: " Hero@Test.so ", Phone: " +252 61 ", Password: "Gr@nd-Kulmis-42"}
		require.NoError(t, nu.Validate(validate))
		assert.Equal(t, "hero@test.so", nu.Email)
		assert.Equal(t, "+252 61", nu.Phone)
	})
}

func TestChangePassword_Validate(t *testing.T) {
	validate := newValidator(t)
	usr := User{Email: "kulmisfan@test.so"}

	tests := []struct {
		name string
		cp   ChangePassword
		want map[string]string
	}{
		{
			name: "required", cp: ChangePassword{},
			want: map[string]string{"current_password": "required", "new_password": "required", "confirm_password": "required"},
		},
		{
			name: "mismatch", cp: ChangePassword{CurrentPassword: "old", NewPassword: "Gr@nd-Kulmis-42", ConfirmPassword: "Gr@nd-Kulmis-43"},
			want: map[string]string{"confirm_password": eqFieldTag},
		},
		{
			name: "like the email", cp: ChangePassword{CurrentPassword: "old", NewPassword: "kulmisfan1", ConfirmPassword: "kulmisfan1"},
			want: map[string]string{"new_password": pwdAttrSimTag},
		},
		{name: "valid", cp: ChangePassword{CurrentPassword: "old", NewPassword: "Gr@nd-Kulmis-42", ConfirmPassword: "Gr@nd-Kulmis-42"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := tt.cp
			assert.Equal(t, tt.want, fieldTags(t, cp.Validate(validate, usr)))
		})
	}
}

func TestResetPassword_Validate(t *testing.T) {
	validate := newValidator(t)

	rp := ResetPassword{Token: " abc ", NewPassword: "12345678", ConfirmPassword: "12345678"}
	assert.Equal(t, map[string]string{"new_password": pwdNotAllNumTag}, fieldTags(t, rp.Validate(validate)))
	assert.Equal(t, "abc", rp.Token)

	rp = ResetPassword{Token: "abc", NewPassword: "Gr@nd-Kulmis-42", ConfirmPassword: "Gr@nd-Kulmis-42"}
	assert.NoError(t, rp.Validate(validate))
}

func TestIsCommonPassword(t *testing.T) {
	LoadCommonPasswords(nil)
	assert.True(t, IsCommonPassword("password1"))
	assert.True(t, IsCommonPassword("QwertyUiop"))
	assert.False(t, IsCommonPassword("Gr@nd-Kulmis-42"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 0.0, similarity("", "abc"))
	assert.Equal(t, 1.0, similarity("abc", "abc"))
	assert.Less(t, similarity("gr@nd-kulmis-42", "hero"), pwdMaxSim)
}
