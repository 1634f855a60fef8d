package pyon

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// escapeToken matches, left to right, the escapes the daemon emits inside
// quoted strings. A \x escape always claims the next two characters.
var escapeToken = regexp.MustCompile(`\\x..|\\n|\\r|\\"|\\\\`)

// Unescape decodes the body of a quoted string literal (quotes already
// removed). Unknown escapes and \x sequences that are not two hex digits are
// kept verbatim.
func Unescape(inner string) (string, error) {
	if !strings.Contains(inner, `\`) {
		if !utf8.ValidString(inner) {
			return "", ErrInvalidText
		}
		return inner, nil
	}
	out := escapeToken.ReplaceAllStringFunc(inner, unescapeToken)
	if !utf8.ValidString(out) {
		return "", ErrInvalidText
	}
	return out, nil
}

func unescapeToken(tok string) string {
	switch tok[1] {
	case 'n':
		return "\n"
	case 'r':
		return "\r"
	case '"':
		return `"`
	case '\\':
		return `\`
	case 'x':
		n, err := strconv.ParseUint(tok[2:], 16, 32)
		if err != nil {
			return tok
		}
		r := rune(n)
		if !utf8.ValidRune(r) {
			return tok
		}
		return string(r)
	}
	return tok
}

// ParseString validates that s is a double-quoted literal and returns its
// unescaped contents.
func ParseString(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", &SyntaxError{Err: ErrNotString, Input: s}
	}
	return Unescape(s[1 : len(s)-1])
}
