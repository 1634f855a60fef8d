package fah

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/danmuck/fahctl/internal/protocol/pyon"
	"github.com/danmuck/fahctl/internal/protocol/session"
)

// DefaultAddr is where FAHClient listens for console connections.
const DefaultAddr = session.DefaultAddress

var (
	ErrBadOption   = errors.New("fah: option key or value contains bad character")
	ErrInvalidText = pyon.ErrInvalidText
)

// LogUpdatesArg selects what log-updates does with the log stream.
type LogUpdatesArg string

const (
	LogUpdatesStart   LogUpdatesArg = "start"
	LogUpdatesRestart LogUpdatesArg = "restart"
	LogUpdatesStop    LogUpdatesArg = "stop"
)

func ParseLogUpdatesArg(s string) (LogUpdatesArg, error) {
	switch arg := LogUpdatesArg(strings.ToLower(strings.TrimSpace(s))); arg {
	case LogUpdatesStart, LogUpdatesRestart, LogUpdatesStop:
		return arg, nil
	default:
		return "", fmt.Errorf("fah: invalid log-updates argument %q", s)
	}
}

// Observer is told about every command a Client sends.
type Observer interface {
	ObserveCommand(verb string, elapsed time.Duration, err error)
}

// Client speaks the FAH command vocabulary over one session. It reuses a
// single response buffer, so calls are serialized.
type Client struct {
	mu       sync.Mutex
	conn     *session.Conn
	buf      []byte
	observer Observer
}

func New(conn *session.Conn) *Client {
	return &Client{conn: conn}
}

// Dial connects to the daemon at addr.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := session.Dial(addr, timeout)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

func (c *Client) SetObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
}

func (c *Client) Session() *session.Conn {
	return c.conn
}

// Reconnect opens a fresh session to the same address.
func (c *Client) Reconnect() error {
	return c.conn.Reconnect()
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Help returns the daemon's command listing.
func (c *Client) Help() (string, error) {
	return c.text("help")
}

// LogUpdates changes log streaming and returns the current log. The log is
// delivered after the next prompt, so an empty eval collects it.
func (c *Client) LogUpdates(arg LogUpdatesArg) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()
	text, err := c.logUpdatesLocked(arg)
	c.observe("log-updates", start, err)
	return text, err
}

func (c *Client) logUpdatesLocked(arg LogUpdatesArg) (string, error) {
	var err error
	if c.buf, err = c.conn.Exec("log-updates "+string(arg), c.buf); err != nil {
		return "", err
	}
	if c.buf, err = c.conn.ExecEval("eval", c.buf); err != nil {
		return "", err
	}
	if !utf8.Valid(c.buf) {
		return "", ErrInvalidText
	}
	return pyon.ParseLog(string(c.buf))
}

// Screensaver unpauses slots waiting for a screensaver and pauses them again
// on disconnect.
func (c *Client) Screensaver() error {
	return c.run("screensaver", "")
}

// AlwaysOn sets slot to always run.
func (c *Client) AlwaysOn(slot int) error {
	return c.run("always_on", strconv.Itoa(slot))
}

// Configured reports whether the daemon has a configuration.
func (c *Client) Configured() (bool, error) {
	var ok bool
	err := c.decode("configured", "", &ok)
	return ok, err
}

// DoCycle runs one client cycle.
func (c *Client) DoCycle() error {
	return c.run("do-cycle", "")
}

// FinishSlot lets slot finish its current unit and then pause.
func (c *Client) FinishSlot(slot int) error {
	return c.run("finish", strconv.Itoa(slot))
}

func (c *Client) FinishAll() error {
	return c.run("finish", "")
}

// Info returns build and machine information as generic JSON.
func (c *Client) Info() (any, error) {
	var v any
	err := c.decode("info", "", &v)
	return v, err
}

func (c *Client) NumSlots() (int64, error) {
	var n int64
	err := c.decode("num-slots", "", &n)
	return n, err
}

// OnIdle sets slot to run only when the machine is idle.
func (c *Client) OnIdle(slot int) error {
	return c.run("on_idle", strconv.Itoa(slot))
}

func (c *Client) OnIdleAll() error {
	return c.run("on_idle", "")
}

func (c *Client) OptionsGet() (Options, error) {
	var opts Options
	err := c.decode("options", "-a", &opts)
	return opts, err
}

// OptionsSet sets one daemon option. Keys may not contain '=', ' ' or '!'
// and values may not contain ' '.
func (c *Client) OptionsSet(key string, value any) error {
	v := fmt.Sprint(value)
	if strings.ContainsAny(key, "= !") || strings.Contains(v, " ") {
		return fmt.Errorf("%w: %s=%s", ErrBadOption, key, v)
	}
	return c.run("options", key+"="+v)
}

func (c *Client) PauseAll() error {
	return c.run("pause", "")
}

func (c *Client) PauseSlot(slot int) error {
	return c.run("pause", strconv.Itoa(slot))
}

// PPD returns the estimated points per day across all slots.
func (c *Client) PPD() (float64, error) {
	var ppd float64
	err := c.decode("ppd", "", &ppd)
	return ppd, err
}

func (c *Client) QueueInfo() ([]SlotQueueInfo, error) {
	var units []SlotQueueInfo
	err := c.decode("queue-info", "", &units)
	return units, err
}

func (c *Client) RequestID() error {
	return c.run("request-id", "")
}

func (c *Client) RequestWS() error {
	return c.run("request-ws", "")
}

// Shutdown stops the daemon. The connection is normally closed by the
// daemon, which surfaces as session.ErrEndOfStream.
func (c *Client) Shutdown() error {
	return c.run("shutdown", "")
}

func (c *Client) SimulationInfo(slot int) (SimulationInfo, error) {
	var info SimulationInfo
	err := c.decode("simulation-info", strconv.Itoa(slot), &info)
	return info, err
}

func (c *Client) SlotInfo() ([]SlotInfo, error) {
	var slots []SlotInfo
	err := c.decode("slot-info", "", &slots)
	return slots, err
}

func (c *Client) UnpauseAll() error {
	return c.run("unpause", "")
}

func (c *Client) UnpauseSlot(slot int) error {
	return c.run("unpause", strconv.Itoa(slot))
}

// Uptime returns how long the daemon has been running.
func (c *Client) Uptime() (Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()
	var err error
	c.buf, err = c.conn.ExecEval("uptime", c.buf)
	if err != nil {
		c.observe("uptime", start, err)
		return Duration{}, err
	}
	d, err := ParseDuration(string(c.buf))
	c.observe("uptime", start, err)
	return d, err
}

// WaitForUnits blocks until all slots are paused.
func (c *Client) WaitForUnits() error {
	return c.run("wait-for-units", "")
}

// Exec sends a raw command line and returns a copy of the response body.
func (c *Client) Exec(command string) ([]byte, error) {
	return c.raw(command, false)
}

// ExecEval sends command through eval and returns a copy of the result.
func (c *Client) ExecEval(command string) ([]byte, error) {
	return c.raw(command, true)
}

func (c *Client) raw(command string, eval bool) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()
	var err error
	verb := "exec"
	if eval {
		verb = "eval"
		c.buf, err = c.conn.ExecEval(command, c.buf)
	} else {
		c.buf, err = c.conn.Exec(command, c.buf)
	}
	c.observe(verb, start, err)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), c.buf...), nil
}

func (c *Client) text(verb string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()
	err := c.execLocked(verb, "")
	if err == nil && !utf8.Valid(c.buf) {
		err = ErrInvalidText
	}
	c.observe(verb, start, err)
	if err != nil {
		return "", err
	}
	return string(c.buf), nil
}

func (c *Client) run(verb, args string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()
	err := c.execLocked(verb, args)
	c.observe(verb, start, err)
	return err
}

func (c *Client) decode(verb, args string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()
	err := c.execLocked(verb, args)
	if err == nil {
		if err = pyon.Decode(c.buf, v); err != nil {
			err = fmt.Errorf("fah: decode %s: %w", verb, err)
		}
	}
	c.observe(verb, start, err)
	return err
}

func (c *Client) execLocked(verb, args string) error {
	command := verb
	if args != "" {
		command += " " + args
	}
	var err error
	c.buf, err = c.conn.Exec(command, c.buf)
	return err
}

func (c *Client) observe(verb string, start time.Time, err error) {
	if c.observer != nil {
		c.observer.ObserveCommand(verb, time.Since(start), err)
	}
}
