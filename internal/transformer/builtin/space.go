package builtin

import (
	"unicode"
	"unicode/utf8"
)

// HasEdgeSpace reports whether s starts or ends with whitespace as defined by
// unicode.IsSpace, the same set strings.TrimSpace removes (NBSP and U+3000
// included). It lets hot paths skip the trim call for already clean cells.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	if c := s[0]; c < utf8.RuneSelf {
		if isASCIISpace(c) {
			return true
		}
	} else if r, _ := utf8.DecodeRuneInString(s); unicode.IsSpace(r) {
		return true
	}
	if c := s[len(s)-1]; c < utf8.RuneSelf {
		return isASCIISpace(c)
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(r)
}

func isASCIISpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
