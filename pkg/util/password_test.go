package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_SaltedBcrypt(t *testing.T) {
	first, err := HashPassword("open-sesame")
	require.NoError(t, err)
	second, err := HashPassword("open-sesame")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	cost, err := bcrypt.Cost([]byte(first))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)

	assert.True(t, VerifyPassword(first, "open-sesame"))
	assert.True(t, VerifyPassword(second, "open-sesame"))
}

func TestVerifyPassword_ExactMatchOnly(t *testing.T) {
	hash, err := HashPassword("Reader2024")
	require.NoError(t, err)

	for _, attempt := range []string{"reader2024", "Reader2024 ", " Reader2024", "Reader202", ""} {
		assert.False(t, VerifyPassword(hash, attempt), "attempt %q", attempt)
	}
	assert.False(t, VerifyPassword("plain-text-column", "plain-text-column"))
}

func TestValidatePassword_CountsRunes(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"", false},
		{"12345", false},
		{"abcd€", false}, // seven bytes, five characters
		{"123456", true},
		{"пароль", true},
	}
	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if tt.ok {
			assert.NoError(t, err, tt.password)
		} else {
			assert.ErrorIs(t, err, ErrWeakPassword, tt.password)
		}
	}
}
