package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluatePassword_DefaultRequirements(t *testing.T) {
	tests := []struct {
		name          string
		password      string
		valid         bool
		strength      Strength
		errorContains string
	}{
		{
			name:     "valid strong password",
			password: "SecureP@ss123",
			valid:    true,
			strength: StrengthStrong,
		},
		{
			name:     "sixteen characters all classes",
			password: "Tr0ub4dor&Horse!",
			valid:    true,
			strength: StrengthStrong,
		},
		{
			name:          "seven characters with every class is too short",
			password:      "Ab1!xyz",
			valid:         false,
			strength:      StrengthWeak,
			errorContains: "at least 8 characters",
		},
		{
			name:          "missing uppercase",
			password:      "securep@ss123",
			valid:         false,
			strength:      StrengthWeak,
			errorContains: "uppercase",
		},
		{
			name:          "missing lowercase",
			password:      "SECUREP@SS123",
			valid:         false,
			strength:      StrengthWeak,
			errorContains: "lowercase",
		},
		{
			name:          "missing digit",
			password:      "SecureP@ssxyz",
			valid:         false,
			strength:      StrengthWeak,
			errorContains: "digit",
		},
		{
			name:          "missing special character",
			password:      "SecurePass123",
			valid:         false,
			strength:      StrengthWeak,
			errorContains: "special character",
		},
		{
			name:          "common substring is case-insensitive",
			password:      "MyPASSWORD1!",
			valid:         false,
			strength:      StrengthWeak,
			errorContains: "too simple or common",
		},
		{
			name:          "three identical characters in a row",
			password:      "Gooo#Secure1",
			valid:         false,
			strength:      StrengthWeak,
			errorContains: "three identical characters",
		},
		{
			name:          "too long",
			password:      strings.Repeat("Ab1!", 33),
			valid:         false,
			strength:      StrengthWeak,
			errorContains: "longer than 128",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EvaluatePassword(tt.password, DefaultPasswordRequirements())

			assert.Equal(t, tt.valid, result.Valid)
			assert.Equal(t, tt.strength, result.Strength)
			if tt.valid {
				assert.Empty(t, result.Errors)
				return
			}
			require.NotEmpty(t, result.Errors)
			assert.Contains(t, strings.Join(result.Errors, "\n"), tt.errorContains)
		})
	}
}

func TestEvaluatePassword_ErrorsAccumulate(t *testing.T) {
	result := EvaluatePassword("lowercaseonly", DefaultPasswordRequirements())

	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 3)
	assert.Equal(t, StrengthWeak, result.Strength)
}

func TestEvaluatePassword_Scoring(t *testing.T) {
	relaxed := PasswordRequirements{MinLength: 8}

	tests := []struct {
		name     string
		password string
		score    int
		strength Strength
	}{
		{"length only", "abcdefgh", 2, StrengthWeak},
		{"ten characters two classes", "abcdefgh12", 3, StrengthMedium},
		{"twelve characters two classes", "abcdefghij12", 4, StrengthMedium},
		{"sixteen characters two classes", "abcdefghijklmn12", 5, StrengthStrong},
		{"short password scores classes only", "aB1!", 4, StrengthWeak},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EvaluatePassword(tt.password, relaxed)
			assert.Equal(t, tt.score, result.Score)
			assert.Equal(t, tt.strength, result.Strength)
		})
	}
}

func TestEvaluatePassword_CommonPenaltyFloorsAtZero(t *testing.T) {
	result := EvaluatePassword("admin", PasswordRequirements{MinLength: 8})

	// one class present, minus two, floored
	assert.Equal(t, 0, result.Score)
	assert.Equal(t, StrengthWeak, result.Strength)
	assert.Contains(t, result.Errors, "Password is too simple or common")
}

func TestEvaluatePassword_CountsCharactersNotBytes(t *testing.T) {
	// seven runes, more than eight bytes
	result := EvaluatePassword("Äb1!xyz", DefaultPasswordRequirements())

	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "Password must contain at least 8 characters")
}

func TestEvaluatePassword_NoMaxLength(t *testing.T) {
	reqs := DefaultPasswordRequirements()
	reqs.MaxLength = 0

	result := EvaluatePassword(strings.Repeat("Ab1!", 40), reqs)
	assert.True(t, result.Valid)
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("Secure#P@ssw0rd"))

	err := ValidatePassword("Pass@1")
	require.Error(t, err)

	var validationErr *PasswordValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.NotEmpty(t, validationErr.Errors)
	// never leak the individual rules in the error string
	assert.Equal(t, "invalid password", err.Error())
}
