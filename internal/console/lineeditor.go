package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

const historySize = 500

// LineEditor reads console input with history on a terminal and falls back
// to plain line scanning otherwise.
type LineEditor struct {
	rl      *readline.Instance
	scanner *bufio.Scanner
	out     io.Writer
}

// NewLineEditor uses readline when in is a terminal. historyPath may be
// empty to disable history.
func NewLineEditor(in io.Reader, out io.Writer, historyPath string) *LineEditor {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) && os.Getenv("INSIDE_EMACS") == "" {
		rl, err := readline.NewFromConfig(&readline.Config{
			HistoryFile:            historyPath,
			HistoryLimit:           historySize,
			DisableAutoSaveHistory: true,
			Stdin:                  f,
			Stdout:                 out,
		})
		if err == nil {
			return &LineEditor{rl: rl, out: out}
		}
		fmt.Fprintf(out, "warning: readline init failed (%v), using basic input\n", err)
	}
	return &LineEditor{scanner: bufio.NewScanner(in), out: out}
}

func (le *LineEditor) Interactive() bool {
	return le.rl != nil
}

// ReadLine returns the next input line, or io.EOF when input ends or the
// user interrupts.
func (le *LineEditor) ReadLine(prompt string) (string, error) {
	if le.rl == nil {
		if !le.scanner.Scan() {
			if err := le.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return le.scanner.Text(), nil
	}

	le.rl.SetPrompt(prompt)
	line, err := le.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if trimmed := strings.TrimSpace(line); trimmed != "" {
		le.rl.SaveToHistory(trimmed)
	}
	return line, nil
}

func (le *LineEditor) Close() {
	if le.rl != nil {
		le.rl.Close()
		le.rl = nil
	}
}
