package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstantTimeEquals(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"equal", "123456", "123456", true},
		{"both empty", "", "", true},
		{"length mismatch", "12345", "123456", false},
		{"differs at first char", "023456", "123456", false},
		{"differs in the middle", "124456", "123456", false},
		{"differs at last char", "123457", "123456", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConstantTimeEquals(tt.a, tt.b))
		})
	}
}

func TestConstantTimeEquals_PositionIndependentResult(t *testing.T) {
	reference := "ABCDEFGH"
	for i := range len(reference) {
		mutated := []byte(reference)
		mutated[i] = 'Z'
		assert.False(t, ConstantTimeEquals(reference, string(mutated)), "difference at %d", i)
	}
}
