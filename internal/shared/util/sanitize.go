package util

import (
	"errors"
	"strings"
	"unicode"
)

// ErrInvalidFileName is returned for empty names and names containing "..".
var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName makes name safe for object keys and Content-Disposition
// headers: separators, quotes and control characters become "_".
func SanitizeFileName(name string) (string, error) {
	s := strings.TrimSpace(name)
	if s == "" || strings.Contains(s, "..") {
		return "", ErrInvalidFileName
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '/', r == '\\', r == '"', r == ';':
			return '_'
		case unicode.IsControl(r):
			return '_'
		}
		return r
	}, s), nil
}

// UnderscoreWhitespace trims s and replaces each whitespace run with "_".
func UnderscoreWhitespace(s string) string {
	return strings.Join(strings.Fields(s), "_")
}
