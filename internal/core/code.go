package core

import (
	"crypto/rand"
	"strings"
)

const (
	// codeAlphabet skips characters that are easy to confuse when read aloud (0/O, 1/I).
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// DefaultCodeLength gives ~1M distinct codes.
	DefaultCodeLength = 4
	maxCodeLength     = 16
)

// NewCode returns a crypto-random session code of the given length.
func NewCode(length int) string {
	if length <= 0 || length > maxCodeLength {
		length = DefaultCodeLength
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	out := make([]byte, length)
	for i := range out {
		out[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(out)
}

// NormalizeCode trims and upper-cases a typed code. Typed codes may use any
// ASCII letter or digit, not only the generator alphabet.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || len(code) > maxCodeLength {
		return "", ErrInvalidCode
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", ErrInvalidCode
		}
	}
	return code, nil
}
