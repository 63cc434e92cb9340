package user

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("Gr@nd-Kulmis-42")
	require.NoError(t, err)

	parts := strings.Split(hash, ":")
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], pbkdf2SaltLen*2)
	assert.Len(t, parts[1], pbkdf2KeyLen*2)

	other, err := HashPassword("Gr@nd-Kulmis-42")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts are random")
}

func TestHashPassword_randFailure(t *testing.T) {
	orig := randRead
	randRead = func([]byte) (int, error) { return 0, errors.New("no entropy") }
	defer func() { randRead = orig }()

	_, err := HashPassword("whatever")
	assert.EqualError(t, err, "generating salt: no entropy")
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Gr@nd-Kulmis-42")
	require.NoError(t, err)
	salt := strings.Split(hash, ":")[0]

	tests := []struct {
		name   string
		pwd    string
		stored string
		want   bool
	}{
		{name: "match", pwd: "Gr@nd-Kulmis-42", stored: hash, want: true},
		{name: "wrong password", pwd: "gr@nd-kulmis-42", stored: hash},
		{name: "empty hash", pwd: "Gr@nd-Kulmis-42"},
		{name: "no separator", pwd: "Gr@nd-Kulmis-42", stored: strings.Replace(hash, ":", "", 1)},
		{name: "bad salt", pwd: "Gr@nd-Kulmis-42", stored: "zz:" + strings.Split(hash, ":")[1]},
		{name: "empty salt", pwd: "Gr@nd-Kulmis-42", stored: ":" + strings.Split(hash, ":")[1]},
		{name: "short key", pwd: "Gr@nd-Kulmis-42", stored: salt + ":abcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyPassword(tt.pwd, tt.stored))
		})
	}
}

func TestUser_CheckPassword(t *testing.T) {
	var usr User
	assert.False(t, usr.CheckPassword(""), "users without password never match")

	require.NoError(t, usr.SetPassword("Gr@nd-Kulmis-42"))
	assert.True(t, usr.HasPassword())
	assert.True(t, usr.CheckPassword("Gr@nd-Kulmis-42"))
	assert.False(t, usr.CheckPassword("nope"))
}

func TestNewResetToken(t *testing.T) {
	tok, err := newResetToken()
	require.NoError(t, err)
	assert.Len(t, tok, resetTokenBytes*2)
	assert.GreaterOrEqual(t, len(tok), resetTokenMinLen)

	other, err := newResetToken()
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}

func TestNewTemporaryPassword(t *testing.T) {
	for i := 0; i < 20; i++ {
		pwd, err := newTemporaryPassword()
		require.NoError(t, err)
		require.Len(t, pwd, tempPasswordLen)
		for _, c := range pwd {
			assert.Contains(t, tempPasswordAlphabet, string(c))
		}
		assert.NotContains(t, pwd, "0")
		assert.NotContains(t, pwd, "l")
	}
}

func TestNewTemporaryPassword_unbiased(t *testing.T) {
	reads := [][]byte{
		{220, 255, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{230, 54, 219, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	}
	orig := randRead
	randRead = func(b []byte) (int, error) {
		n := copy(b, reads[0])
		reads = reads[1:]
		return n, nil
	}
	defer func() { randRead = orig }()

	pwd, err := newTemporaryPassword()
	require.NoError(t, err)
	// 220 and above are dropped: 220 = 4 * 55
	assert.Equal(t, "ABCDEFGHJK99", pwd)
	assert.Empty(t, reads)
}
