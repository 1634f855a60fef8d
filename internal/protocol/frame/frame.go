package frame

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// Sentinel is the prompt the daemon prints after every response body.
const Sentinel = "\n> "

const defaultBufferSize = 4096

var (
	// ErrEndOfStream reports that the peer closed the stream before a
	// complete response was seen. It is the only error that should trigger
	// a reconnect.
	ErrEndOfStream = errors.New("frame: end of stream before prompt")

	ErrMessageTooLarge = errors.New("frame: message too large")
	ErrCommandNewline  = errors.New("frame: command contains newline")
)

// Limits constrains message decode memory use. Zero means unbounded.
type Limits struct {
	MaxMessageBytes int
}

func DefaultLimits() Limits {
	return Limits{}
}

// Reader splits a byte stream into prompt-terminated messages. Bytes that
// follow a prompt stay buffered for the next ReadMessage call.
type Reader struct {
	br     *bufio.Reader
	limits Limits
}

func NewReader(r io.Reader, limits Limits) *Reader {
	return &Reader{
		br:     bufio.NewReaderSize(r, defaultBufferSize),
		limits: limits,
	}
}

// Buffered returns the number of bytes already read past the last message.
func (r *Reader) Buffered() int {
	return r.br.Buffered()
}

// ReadMessage clears buf, fills it with the next message body and returns
// it. The prompt is removed, and so is a single leading newline if the body
// starts with one.
//
// A message over the limit is still read through its prompt, without being
// stored, so the stream stays aligned on message boundaries. The returned
// buffer is then empty.
func (r *Reader) ReadMessage(buf []byte) ([]byte, error) {
	buf = buf[:0]
	matched := 0
	overflow := false
	for {
		if r.br.Buffered() == 0 {
			if _, err := r.br.Peek(1); err != nil {
				if errors.Is(err, io.EOF) {
					return buf, ErrEndOfStream
				}
				return buf, err
			}
		}

		chunk, _ := r.br.Peek(r.br.Buffered())
		n, done := scanSentinel(chunk, &matched)
		if !overflow {
			buf = append(buf, chunk[:n]...)
		}
		_, _ = r.br.Discard(n)

		if done {
			if overflow {
				return buf, ErrMessageTooLarge
			}
			buf = trimMessage(buf)
			if r.exceeds(len(buf)) {
				return buf[:0], ErrMessageTooLarge
			}
			return buf, nil
		}
		// One leading newline and the partial prompt are not counted.
		if !overflow && r.exceeds(len(buf)-len(Sentinel)-1) {
			overflow = true
			buf = buf[:0]
		}
	}
}

func (r *Reader) exceeds(n int) bool {
	return r.limits.MaxMessageBytes > 0 && n > r.limits.MaxMessageBytes
}

// scanSentinel advances the prompt matcher over chunk. matched holds how many
// leading bytes of Sentinel the data seen so far ends with. It returns the
// number of bytes consumed and whether the prompt completed at that point.
func scanSentinel(chunk []byte, matched *int) (int, bool) {
	for i, b := range chunk {
		switch {
		case b == Sentinel[*matched]:
			*matched++
		case b == Sentinel[0]:
			*matched = 1
		default:
			*matched = 0
		}
		if *matched == len(Sentinel) {
			return i + 1, true
		}
	}
	return len(chunk), false
}

func trimMessage(buf []byte) []byte {
	buf = buf[:len(buf)-len(Sentinel)]
	if len(buf) > 0 && buf[0] == '\n' {
		n := copy(buf, buf[1:])
		buf = buf[:n]
	}
	return buf
}

// ReadMessage reads one message from r into buf. Any bytes r yields past the
// prompt are lost, so long-lived streams should use a Reader instead.
func ReadMessage(r io.Reader, buf []byte) ([]byte, error) {
	return NewReader(r, DefaultLimits()).ReadMessage(buf)
}

// WriteCommand writes command as one protocol line.
func WriteCommand(w io.Writer, command string) error {
	if strings.Contains(command, "\n") {
		return ErrCommandNewline
	}
	line := make([]byte, 0, len(command)+1)
	line = append(line, command...)
	line = append(line, '\n')
	_, err := w.Write(line)
	return err
}
