package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func scripted(answers ...string) (PasswordFunc, *int) {
	calls := 0
	return func(string) (string, error) {
		a := answers[calls]
		calls++
		return a, nil
	}, &calls
}

func TestGate_NoHashRefuses(t *testing.T) {
	prompt, calls := scripted()
	err := NewGate("", prompt).Verify()
	assert.ErrorIs(t, err, ErrNoPassword)
	assert.Zero(t, *calls)
}

func TestGate_SecondAttempt(t *testing.T) {
	hash, err := HashPassword("open sesame")
	require.NoError(t, err)

	prompt, calls := scripted("wrong", "open sesame")
	require.NoError(t, NewGate(hash, prompt).Verify())
	assert.Equal(t, 2, *calls)
}

func TestGate_ThreeStrikes(t *testing.T) {
	hash, err := HashPassword("open sesame")
	require.NoError(t, err)

	prompt, calls := scripted("a", "b", "c", "open sesame")
	err = NewGate(hash, prompt).Verify()
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Equal(t, MaxAttempts, *calls)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw")))

	_, err = HashPassword("")
	assert.Error(t, err)
}
