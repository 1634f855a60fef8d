package main

import (
	"os"
	"path/filepath"

	"github.com/danmuck/fahctl/internal/config"
	"github.com/danmuck/fahctl/internal/console"
	"github.com/danmuck/fahctl/internal/exporter"
	"github.com/danmuck/fahctl/internal/fah"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func (a *app) consoleCmd() *cobra.Command {
	var history string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Open an interactive console on the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd, func(c *fah.Client) error {
				editor := console.NewLineEditor(a.stdin, a.stdout, history)
				defer editor.Close()
				if editor.Interactive() {
					_ = a.printText("connected to " + a.cfg.Address + ", .help for console commands")
				}
				return console.New(c, editor, a.stdout).Run(cmd.Context())
			})
		},
	}
	cmd.Flags().StringVar(&history, "history", defaultHistoryPath(), "history file for interactive sessions")
	return cmd
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fahctl_history")
}

func (a *app) exporterCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "exporter",
		Short: "Serve daemon state over HTTP and Prometheus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg.Exporter
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			return a.withClient(cmd, func(c *fah.Client) error {
				poller := exporter.NewPoller(c, cfg.PollInterval)
				srv := exporter.New(cfg.Listen, c, poller, cfg.CORSOrigins)
				log.Info().
					Str("component", "fahctl").
					Str("daemon", a.cfg.Address).
					Dur("poll_interval", cfg.PollInterval).
					Msg("exporter starting")
				return srv.Serve(cmd.Context())
			})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides exporter.listen)")
	return cmd
}

func (a *app) configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the fahctl config file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with every default spelled out",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := config.DefaultPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteTemplate(path, force); err != nil {
				return err
			}
			return a.printText("wrote " + path)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd, &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return config.Encode(a.stdout, a.cfg)
		},
	})
	return cfgCmd
}
