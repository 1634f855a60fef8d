package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/fahctl/internal/fah"
	"github.com/spf13/cobra"
)

func (a *app) daemonCommands() []*cobra.Command {
	return []*cobra.Command{
		a.textCmd("help-daemon", "Print the daemon's command listing", func(c *fah.Client) (string, error) {
			return c.Help()
		}),
		a.jsonCmd("info", "Show build and machine info", func(c *fah.Client) (any, error) {
			return c.Info()
		}),
		a.jsonCmd("slots", "Show slot status", func(c *fah.Client) (any, error) {
			return c.SlotInfo()
		}),
		a.jsonCmd("queue", "Show queued work units", func(c *fah.Client) (any, error) {
			return c.QueueInfo()
		}),
		a.jsonCmd("ppd", "Show estimated points per day", func(c *fah.Client) (any, error) {
			return c.PPD()
		}),
		a.jsonCmd("configured", "Report whether the daemon is configured", func(c *fah.Client) (any, error) {
			return c.Configured()
		}),
		a.textCmd("uptime", "Show daemon uptime", func(c *fah.Client) (string, error) {
			d, err := c.Uptime()
			return d.String(), err
		}),
		a.simCmd(),
		a.optionsCmd(),
		a.slotCmd("pause", "Pause one slot or all slots", (*fah.Client).PauseSlot, (*fah.Client).PauseAll),
		a.slotCmd("unpause", "Unpause one slot or all slots", (*fah.Client).UnpauseSlot, (*fah.Client).UnpauseAll),
		a.slotCmd("finish", "Finish the current unit and pause", (*fah.Client).FinishSlot, (*fah.Client).FinishAll),
		a.logCmd(),
		a.rawCmd("exec", "Send a raw command and print the response", (*fah.Client).Exec),
		a.rawCmd("eval", "Run a command through eval and print the result", (*fah.Client).ExecEval),
	}
}

func (a *app) textCmd(use, short string, fn func(*fah.Client) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd, func(c *fah.Client) error {
				s, err := fn(c)
				if err != nil {
					return err
				}
				return a.printText(s)
			})
		},
	}
}

func (a *app) jsonCmd(use, short string, fn func(*fah.Client) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd, func(c *fah.Client) error {
				v, err := fn(c)
				if err != nil {
					return err
				}
				return a.printJSON(v)
			})
		},
	}
}

func (a *app) simCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sim <slot>",
		Short: "Show simulation info for a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			return a.withClient(cmd, func(c *fah.Client) error {
				info, err := c.SimulationInfo(slot)
				if err != nil {
					return err
				}
				return a.printJSON(info)
			})
		},
	}
}

func (a *app) optionsCmd() *cobra.Command {
	options := &cobra.Command{
		Use:   "options",
		Short: "Read or change daemon options",
	}
	options.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print every daemon option",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withClient(cmd, func(c *fah.Client) error {
					opts, err := c.OptionsGet()
					if err != nil {
						return err
					}
					return a.printJSON(opts)
				})
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set one daemon option",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withClient(cmd, func(c *fah.Client) error {
					return c.OptionsSet(args[0], args[1])
				})
			},
		},
	)
	return options
}

func (a *app) slotCmd(use, short string, one func(*fah.Client, int) error, all func(*fah.Client) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [slot]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot := -1
			if len(args) == 1 {
				var err error
				if slot, err = parseSlot(args[0]); err != nil {
					return err
				}
			}
			return a.withClient(cmd, func(c *fah.Client) error {
				if slot < 0 {
					return all(c)
				}
				return one(c, slot)
			})
		},
	}
}

func (a *app) logCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "log [start|restart|stop]",
		Short:     "Change log streaming and print the current log",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"start", "restart", "stop"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := fah.LogUpdatesStart
			if len(args) == 1 {
				var err error
				if mode, err = fah.ParseLogUpdatesArg(args[0]); err != nil {
					return err
				}
			}
			return a.withClient(cmd, func(c *fah.Client) error {
				text, err := c.LogUpdates(mode)
				if err != nil {
					return err
				}
				return a.printText(text)
			})
		},
	}
}

func (a *app) rawCmd(use, short string, fn func(*fah.Client, string) ([]byte, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <command...>",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(c *fah.Client) error {
				body, err := fn(c, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return a.printText(string(body))
			})
		},
	}
}

func parseSlot(raw string) (int, error) {
	slot, err := strconv.Atoi(raw)
	if err != nil || slot < 0 {
		return 0, fmt.Errorf("invalid slot %q", raw)
	}
	return slot, nil
}
