package auth

import "strings"

// base32Alphabet is the RFC 4648 alphabet used for TOTP secrets
const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// base32Index maps an input byte to its 5-bit value, or -1 for bytes outside the alphabet.
// Lowercase letters map to the same values as uppercase.
var base32Index = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(base32Alphabet); i++ {
		c := base32Alphabet[i]
		idx[c] = int8(i)
		if c >= 'A' && c <= 'Z' {
			idx[c+('a'-'A')] = int8(i)
		}
	}
	return idx
}()

// Base32Encode encodes data with the RFC 4648 alphabet without '=' padding.
// A trailing partial group is left-shifted with zero bits.
func Base32Encode(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow((len(data)*8 + 4) / 5)

	var buffer uint32
	bits := 0
	for _, b := range data {
		buffer = (buffer << 8) | uint32(b)
		bits += 8
		for bits >= 5 {
			sb.WriteByte(base32Alphabet[(buffer>>(bits-5))&31])
			bits -= 5
		}
		buffer &= (1 << bits) - 1
	}

	if bits > 0 {
		sb.WriteByte(base32Alphabet[(buffer<<(5-bits))&31])
	}

	return sb.String()
}

// Base32Decode decodes a Base32 string leniently.
// Case is ignored and every character outside the alphabet (padding, spaces, dashes)
// is skipped. Bits that do not fill a whole byte at the end are discarded.
// Malformed input never fails: it yields a shorter or empty slice.
func Base32Decode(s string) []byte {
	out := make([]byte, 0, len(s)*5/8)

	var buffer uint32
	bits := 0
	for i := 0; i < len(s); i++ {
		v := base32Index[s[i]]
		if v < 0 {
			continue
		}
		buffer = (buffer << 5) | uint32(v)
		bits += 5
		if bits >= 8 {
			out = append(out, byte(buffer>>(bits-8)))
			bits -= 8
			buffer &= (1 << bits) - 1
		}
	}

	return out
}
