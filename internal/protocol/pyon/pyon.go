package pyon

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

const (
	// Prefix opens every envelope: "PyON <version> [<type>]\n".
	Prefix = "PyON"
	// Suffix closes the payload.
	Suffix = "\n---"
	// LogSuffix trails the streamed log-update envelope.
	LogSuffix = "\n---\n\n"
)

// valueRewrites turn the bareword literals the daemon prints in map value
// position into JSON tokens. They run one after another over the whole
// payload, so a later rewrite sees the output of an earlier one.
var valueRewrites = [...][2]string{
	{`": None`, `": ""`},
	{`": False`, `": false`},
	{`": True`, `": true`},
}

// ToJSON strips the envelope from s and returns its payload as JSON text.
func ToJSON(s string) (string, error) {
	if !strings.HasPrefix(s, Prefix) || !strings.HasSuffix(s, Suffix) {
		return "", &SyntaxError{Err: ErrInvalidFormat, Input: s}
	}

	end := len(s) - len(Suffix)
	start := 0
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		start = i + 1
	}
	if start > end {
		start = end
	}

	payload := s[start:end]
	switch payload {
	case "True":
		return "true", nil
	case "False":
		return "false", nil
	}
	for _, rw := range valueRewrites {
		payload = strings.ReplaceAll(payload, rw[0], rw[1])
	}
	return payload, nil
}

// Decode converts an envelope held in body to JSON and unmarshals it into v.
func Decode(body []byte, v any) error {
	if !utf8.Valid(body) {
		return ErrInvalidText
	}
	js, err := ToJSON(string(body))
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(js), v)
}

// ParseLog extracts the log text from a log-update envelope:
//
//	PyON 1 log-update\n"...escaped text..."\n---\n\n
func ParseLog(s string) (string, error) {
	trimmed := s
	if len(s) > len(LogSuffix) && strings.HasSuffix(s, LogSuffix) {
		trimmed = s[:len(s)-len(LogSuffix)]
	}
	start := 0
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		start = i + 1
	}
	return ParseString(trimmed[start:])
}
