package credentials

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const MaxAttempts = 3

var (
	ErrNoPassword         = errors.New("no credential password configured; set credential_password_hash (see `iamctl credentials hash-password`)")
	ErrVerificationFailed = errors.New("verification failed")
)

// PasswordFunc reads a password without echo.
type PasswordFunc func(prompt string) (string, error)

// Gate guards credential display behind a bcrypt-hashed password.
type Gate struct {
	hash   []byte
	prompt PasswordFunc
}

func NewGate(hash string, prompt PasswordFunc) *Gate {
	return &Gate{hash: []byte(hash), prompt: prompt}
}

// Verify allows MaxAttempts tries.
func (g *Gate) Verify() error {
	if len(g.hash) == 0 {
		return ErrNoPassword
	}
	for i := 0; i < MaxAttempts; i++ {
		pw, err := g.prompt("Verification password: ")
		if err != nil {
			return err
		}
		if bcrypt.CompareHashAndPassword(g.hash, []byte(pw)) == nil {
			return nil
		}
	}
	return ErrVerificationFailed
}

func HashPassword(pw string) (string, error) {
	if pw == "" {
		return "", errors.New("password must not be empty")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
