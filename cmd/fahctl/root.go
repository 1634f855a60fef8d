package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/danmuck/fahctl/internal/config"
	"github.com/danmuck/fahctl/internal/fah"
	"github.com/danmuck/fahctl/internal/logging"
	"github.com/danmuck/fahctl/internal/observability"
	"github.com/danmuck/fahctl/internal/protocol/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "dev"

type app struct {
	configPath string
	addr       string
	timeout    time.Duration
	logLevel   string

	cfg    config.Config
	stdin  io.Reader
	stdout io.Writer
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout}
	root := &cobra.Command{
		Use:           "fahctl",
		Short:         "Control a Folding@home client over its console port",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.resolveConfig(cmd)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default: ./"+config.DefaultPath+" when present)")
	flags.StringVar(&a.addr, "addr", "", "daemon address (default "+fah.DefaultAddr+")")
	flags.DurationVar(&a.timeout, "timeout", 0, "dial and idle timeout")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: trace|debug|info|warn|error|disabled")

	root.AddCommand(a.daemonCommands()...)
	root.AddCommand(
		a.consoleCmd(),
		a.exporterCmd(),
		a.configCmd(),
	)
	return root
}

func (a *app) resolveConfig(cmd *cobra.Command) error {
	var err error
	if a.configPath == "" {
		a.cfg, err = config.LoadOptional(config.DefaultPath)
	} else {
		a.cfg, err = config.Load(a.configPath)
	}
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		a.cfg.Address = a.addr
	}
	if flags.Changed("timeout") {
		a.cfg.Timeout = a.timeout
	}
	if flags.Changed("log-level") {
		a.cfg.LogLevel = a.logLevel
	}
	if err := config.Validate(a.cfg); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}

	if flags.Changed("log-level") || os.Getenv(logging.EnvLogLevel) == "" {
		logging.SetLevel(a.cfg.LogLevel)
	}
	return nil
}

// connect dials the daemon, retrying as configured.
func (a *app) connect(ctx context.Context) (*fah.Client, error) {
	sess := a.cfg.Session()
	sess.OnReconnect = func(addr string, err error) {
		observability.RecordReconnect(addr, err)
		ev := log.Info()
		if err != nil {
			ev = log.Warn().Err(err)
		}
		ev.Str("component", "fahctl").Str("addr", addr).Msg("reconnected after daemon closed the stream")
	}
	conn, err := session.DialRetry(ctx, sess, a.cfg.ConnectAttempts)
	if err != nil {
		return nil, err
	}
	client := fah.New(conn)
	client.SetObserver(observability.CommandMetrics{})
	return client, nil
}

// withClient runs fn against a fresh connection and closes it afterwards.
func (a *app) withClient(cmd *cobra.Command, fn func(*fah.Client) error) error {
	client, err := a.connect(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printText(s string) error {
	if s == "" {
		return nil
	}
	if s[len(s)-1] != '\n' {
		s += "\n"
	}
	_, err := io.WriteString(a.stdout, s)
	return err
}
