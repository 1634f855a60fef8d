// Package console is an interactive shell over a daemon session. Plain lines
// are sent as commands; lines starting with '.' are handled locally.
package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/fahctl/internal/fah"
	"github.com/danmuck/fahctl/internal/protocol/pyon"
	"github.com/danmuck/fahctl/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

const Prompt = "fah> "

var errQuit = errors.New("console: quit")

// Commander is the part of fah.Client the console drives.
type Commander interface {
	Exec(command string) ([]byte, error)
	ExecEval(command string) ([]byte, error)
	LogUpdates(arg fah.LogUpdatesArg) (string, error)
	Reconnect() error
}

type lineReader interface {
	ReadLine(prompt string) (string, error)
}

type Console struct {
	client Commander
	input  lineReader
	out    io.Writer
}

func New(client Commander, input lineReader, out io.Writer) *Console {
	return &Console{client: client, input: input, out: out}
}

// Run reads and handles lines until input ends, .quit is entered or ctx is
// done. Command failures are printed and do not stop the loop.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := c.input.ReadLine(Prompt)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		err = c.Handle(line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			log.Debug().Str("component", "console").Str("line", line).Err(err).Msg("command failed")
			fmt.Fprintf(c.out, "error: %v\n", err)
			if errors.Is(err, session.ErrNotConnected) {
				fmt.Fprintln(c.out, "hint: .reconnect opens a new connection")
			}
		}
	}
}

// Handle runs a single console line.
func (c *Console) Handle(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, ".") {
		body, err := c.client.Exec(line)
		if err != nil {
			return err
		}
		c.print(body)
		return nil
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case ".help":
		fmt.Fprint(c.out, helpText)
	case ".quit", ".exit":
		return errQuit
	case ".eval":
		body, err := c.client.ExecEval(arg)
		if err != nil {
			return err
		}
		c.print(body)
	case ".json":
		body, err := c.client.Exec(arg)
		if err != nil {
			return err
		}
		js, err := pyon.ToJSON(string(body))
		if err != nil {
			return err
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, []byte(js), "", "  "); err != nil {
			return fmt.Errorf("console: response is not valid JSON: %w", err)
		}
		c.print(pretty.Bytes())
	case ".log":
		mode := fah.LogUpdatesStart
		if arg != "" {
			var err error
			if mode, err = fah.ParseLogUpdatesArg(arg); err != nil {
				return err
			}
		}
		text, err := c.client.LogUpdates(mode)
		if err != nil {
			return err
		}
		c.print([]byte(text))
	case ".reconnect":
		if err := c.client.Reconnect(); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "connected")
	default:
		return fmt.Errorf("unknown console command %q (try .help)", name)
	}
	return nil
}

func (c *Console) print(body []byte) {
	if len(body) == 0 {
		return
	}
	_, _ = c.out.Write(body)
	if body[len(body)-1] != '\n' {
		fmt.Fprintln(c.out)
	}
}

const helpText = `Lines are sent to the daemon as commands (try "help").
  .help             show this text
  .eval <cmd>       run <cmd> through eval
  .json <cmd>       run <cmd> and print its PyON response as JSON
  .log [mode]       log-updates start|restart|stop and print the log
  .reconnect        open a new connection to the daemon
  .quit             leave the console
`
