package queue

import (
	"math/rand/v2"
	"strings"
)

// codeLetters leaves out I and O, which read as 1 and 0.
const codeLetters = "ABCDEFGHJKLMNPQRSTUVWXYZ"

const codeDigits = "0123456789"

// maxCodeAttempts bounds retries against the storage uniqueness constraint.
const maxCodeAttempts = 10

// NewCode returns three letters followed by three digits, e.g. "KXA042".
func NewCode() string {
	var b strings.Builder
	b.Grow(6)

	for range 3 {
		b.WriteByte(codeLetters[rand.IntN(len(codeLetters))])
	}
	for range 3 {
		b.WriteByte(codeDigits[rand.IntN(len(codeDigits))])
	}

	return b.String()
}

// NormalizeCode makes lookups case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
