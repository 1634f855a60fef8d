package pyon

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFormat = errors.New("pyon: invalid envelope")
	ErrNotString     = errors.New("pyon: not a quoted string")
	ErrInvalidText   = errors.New("pyon: invalid utf-8 text")
)

// maxQuoted bounds how much of the offending input is echoed in errors.
const maxQuoted = 64

// SyntaxError reports input rejected before any decoding took place.
type SyntaxError struct {
	Err   error
	Input string
}

func (e *SyntaxError) Error() string {
	in := e.Input
	if len(in) > maxQuoted {
		in = in[:maxQuoted] + "..."
	}
	return fmt.Sprintf("%v: %q", e.Err, in)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}
