package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// DefaultBackupCodeCount is used when a non-positive count is requested
const DefaultBackupCodeCount = 10

// GenerateBackupCodes returns count recovery codes formatted XXXX-XXXX (8 uppercase hex digits).
// Codes are independent of each other and of any earlier call; tracking use is up to the caller.
func GenerateBackupCodes(count int) ([]string, error) {
	if count <= 0 {
		count = DefaultBackupCodeCount
	}

	codes := make([]string, count)
	buf := make([]byte, 4)
	for i := range codes {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		h := strings.ToUpper(hex.EncodeToString(buf))
		codes[i] = h[:4] + "-" + h[4:]
	}

	return codes, nil
}

// HashBackupCode returns the SHA-256 hex digest of a normalized backup code for storage.
// Case, dashes and whitespace are ignored.
func HashBackupCode(code string) string {
	hash := sha256.Sum256([]byte(normalizeBackupCode(code)))
	return hex.EncodeToString(hash[:])
}

// VerifyBackupCode compares code with a stored hash in constant time
func VerifyBackupCode(code, hashedCode string) bool {
	return subtle.ConstantTimeCompare([]byte(HashBackupCode(code)), []byte(hashedCode)) == 1
}

func normalizeBackupCode(code string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ', '\t':
			return -1
		}
		if r >= 'a' && r <= 'z' {
			return r - ('a' - 'A')
		}
		return r
	}, code)
}
