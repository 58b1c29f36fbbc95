package room

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

// CodeLength is the length of a room code.
const CodeLength = 6

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var codePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// ValidCode reports whether s has the shape of a room code.
func ValidCode(s string) bool {
	return codePattern.MatchString(s)
}

// newCode draws a random 6-char uppercase alphanumeric code.
func newCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
