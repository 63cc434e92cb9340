package user

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100000
	pbkdf2SaltLen    = 16
	pbkdf2KeyLen     = 32

	resetTokenBytes  = 32
	resetTokenMinLen = 32

	tempPasswordLen      = 12
	tempPasswordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"
)

var randRead = rand.Read // mockable

// HashPassword derives a PBKDF2-SHA256 key from pwd and a random salt.
// The result is encoded as "saltHex:keyHex".
func HashPassword(pwd string) (string, error) {
	salt := make([]byte, pbkdf2SaltLen)
	if _, err := randRead(salt); err != nil {
		return "", errors.Wrap(err, "generating salt")
	}
	key := pbkdf2.Key([]byte(pwd), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(key), nil
}

// VerifyPassword compares pwd against a hash produced by HashPassword in constant time.
// Malformed hashes never match.
func VerifyPassword(pwd, stored string) bool {
	parts := strings.SplitN(stored, ":", 2)
	if len(parts) != 2 {
		return false
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil || len(salt) == 0 {
		return false
	}
	want, err := hex.DecodeString(parts[1])
	if err != nil || len(want) != pbkdf2KeyLen {
		return false
	}
	got := pbkdf2.Key([]byte(pwd), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func newResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := randRead(b); err != nil {
		return "", errors.Wrap(err, "generating reset token")
	}
	return hex.EncodeToString(b), nil
}

// newTemporaryPassword picks characters from an alphabet without look-alikes (0/O, 1/l/I).
// Bytes past the last multiple of the alphabet size are dropped so every character is equally likely.
func newTemporaryPassword() (string, error) {
	limit := 256 - 256%len(tempPasswordAlphabet)
	pwd := make([]byte, 0, tempPasswordLen)
	b := make([]byte, tempPasswordLen)
	for len(pwd) < tempPasswordLen {
		if _, err := randRead(b); err != nil {
			return "", errors.Wrap(err, "generating temporary password")
		}
		for _, c := range b {
			if int(c) >= limit {
				continue
			}
			pwd = append(pwd, tempPasswordAlphabet[int(c)%len(tempPasswordAlphabet)])
			if len(pwd) == tempPasswordLen {
				break
			}
		}
	}
	return string(pwd), nil
}
