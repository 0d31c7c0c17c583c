package auth

import "crypto/subtle"

// ConstantTimeEquals reports whether a and b are equal.
// Strings of different length return false immediately; for equal lengths the
// running time does not depend on where the first difference is.
func ConstantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
