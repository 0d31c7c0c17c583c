package auth

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MinPasswordLen = 8
	MaxPasswordLen = 128

	// Length thresholds that earn extra score points
	longPasswordLen     = 12
	veryLongPasswordLen = 16
)

// specialChars is the set counted as "special characters"
const specialChars = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?`~"

// Strength is the coarse tier assigned to a password
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

// PasswordRequirements configures password complexity rules
type PasswordRequirements struct {
	MinLength           int  `json:"min_length"`
	MaxLength           int  `json:"max_length"` // <= 0 disables the upper bound
	RequireUppercase    bool `json:"require_uppercase"`
	RequireLowercase    bool `json:"require_lowercase"`
	RequireNumbers      bool `json:"require_numbers"`
	RequireSpecialChars bool `json:"require_special_chars"`
}

// DefaultPasswordRequirements returns 8-128 characters with every character class required
func DefaultPasswordRequirements() PasswordRequirements {
	return PasswordRequirements{
		MinLength:           MinPasswordLen,
		MaxLength:           MaxPasswordLen,
		RequireUppercase:    true,
		RequireLowercase:    true,
		RequireNumbers:      true,
		RequireSpecialChars: true,
	}
}

// PasswordValidationResult is the outcome of evaluating a password.
// Strength is always set, even for invalid passwords, so UIs can give feedback while typing.
type PasswordValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Strength Strength `json:"strength"`
	Score    int      `json:"score"`
}

// PasswordValidationError holds validation error details (internal use only)
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	// Return generic error to users - never expose specific requirements to prevent enumeration attacks
	return "invalid password"
}

// Substrings that mark a password as too simple, matched case-insensitively
var commonPasswords = []string{
	"password",
	"123456",
	"12345678",
	"qwerty",
	"abc123",
	"password1",
	"admin",
	"letmein",
	"welcome",
	"monkey",
	"dragon",
	"master",
}

// EvaluatePassword scores a password against reqs and collects every rule it breaks
func EvaluatePassword(password string, reqs PasswordRequirements) PasswordValidationResult {
	errors := make([]string, 0)
	score := 0
	length := utf8.RuneCountInString(password)

	if length < reqs.MinLength {
		errors = append(errors, fmt.Sprintf("Password must contain at least %d characters", reqs.MinLength))
	} else {
		score++
		if length >= longPasswordLen {
			score++
		}
		if length >= veryLongPasswordLen {
			score++
		}
	}

	if reqs.MaxLength > 0 && length > reqs.MaxLength {
		errors = append(errors, fmt.Sprintf("Password cannot be longer than %d characters", reqs.MaxLength))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSpecial := false

	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(specialChars, r):
			hasSpecial = true
		}
	}

	classes := []struct {
		present  bool
		required bool
		message  string
	}{
		{hasUpper, reqs.RequireUppercase, "Password must contain at least one uppercase letter"},
		{hasLower, reqs.RequireLowercase, "Password must contain at least one lowercase letter"},
		{hasDigit, reqs.RequireNumbers, "Password must contain at least one digit"},
		{hasSpecial, reqs.RequireSpecialChars, "Password must contain at least one special character (!@#$%^&*...)"},
	}
	for _, c := range classes {
		if c.present {
			score++
		} else if c.required {
			errors = append(errors, c.message)
		}
	}

	if containsCommonPassword(password) {
		errors = append(errors, "Password is too simple or common")
		score = max(0, score-2)
	}

	if hasRepeatedRun(password, 3) {
		errors = append(errors, "Password should not contain three identical characters in a row")
	}

	return PasswordValidationResult{
		Valid:    len(errors) == 0,
		Errors:   errors,
		Strength: strengthFor(score, len(errors) > 0),
		Score:    score,
	}
}

// ValidatePassword enforces the default requirements and returns a *PasswordValidationError on failure
func ValidatePassword(password string) error {
	result := EvaluatePassword(password, DefaultPasswordRequirements())
	if !result.Valid {
		return &PasswordValidationError{Errors: result.Errors}
	}
	return nil
}

func strengthFor(score int, hasErrors bool) Strength {
	switch {
	case hasErrors || score <= 2:
		return StrengthWeak
	case score <= 4:
		return StrengthMedium
	default:
		return StrengthStrong
	}
}

func containsCommonPassword(password string) bool {
	lower := strings.ToLower(password)
	for _, common := range commonPasswords {
		if strings.Contains(lower, common) {
			return true
		}
	}
	return false
}

// hasRepeatedRun reports whether password contains n or more identical consecutive characters
func hasRepeatedRun(password string, n int) bool {
	var prev rune
	run := 0
	for i, r := range password {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}
	return false
}
