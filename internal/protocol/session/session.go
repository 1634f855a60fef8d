package session

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/fahctl/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotConnected = errors.New("session: not connected")
	// ErrEndOfStream is returned by Exec when the daemon closed the
	// connection mid-response. The Conn has already reconnected by then.
	ErrEndOfStream = frame.ErrEndOfStream
)

// State is the connection manager state.
type State int

const (
	StateDisconnected State = iota
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ConnectError reports a failed dial or banner read.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("session: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Conn is a console session with one daemon. All methods are safe for
// concurrent use; commands are serialized.
type Conn struct {
	mu     sync.Mutex
	cfg    Config
	state  State
	conn   net.Conn
	reader *frame.Reader
	banner []byte
}

// Dial connects to addr using timeout for the dial and for every read and
// write that follows.
func Dial(addr string, timeout time.Duration) (*Conn, error) {
	cfg := DefaultConfig()
	cfg.Address = addr
	cfg.Timeout = timeout
	return DialConfig(cfg)
}

func DialConfig(cfg Config) (*Conn, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		cfg.Address = DefaultAddress
	}
	c := &Conn{cfg: cfg}
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Conn) Addr() string {
	return c.cfg.Address
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Exec sends command and reads its response body into buf, which is cleared
// first. An empty command returns the empty buffer without any I/O.
//
// If the daemon closes the stream before the prompt, Exec reconnects once to
// the same address and returns ErrEndOfStream, or the reconnect error if that
// failed. The command is not resent.
func (c *Conn) Exec(command string, buf []byte) ([]byte, error) {
	buf = buf[:0]
	if command == "" {
		return buf, nil
	}
	if strings.Contains(command, "\n") {
		return buf, frame.ErrCommandNewline
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return buf, ErrNotConnected
	}

	if err := frame.WriteCommand(c.conn, command); err != nil {
		return buf, fmt.Errorf("session: write %q: %w", command, err)
	}
	buf, err := c.reader.ReadMessage(buf)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, frame.ErrEndOfStream):
		log.Debug().
			Str("component", "session").
			Str("addr", c.cfg.Address).
			Str("command", command).
			Msg("stream closed mid-response, reconnecting")
		rerr := c.connectLocked()
		if hook := c.cfg.OnReconnect; hook != nil {
			hook(c.cfg.Address, rerr)
		}
		if rerr != nil {
			return buf, rerr
		}
		return buf, err
	default:
		return buf, fmt.Errorf("session: read %q: %w", command, err)
	}
}

// ExecEval runs command through the daemon's eval command, which expands it
// as "$(command)". The single trailing backslash eval leaves is removed.
func (c *Conn) ExecEval(command string, buf []byte) ([]byte, error) {
	if command == "" {
		return c.Exec("", buf)
	}
	buf, err := c.Exec(`eval "$(`+command+`)\n"`, buf)
	if err != nil {
		return buf, err
	}
	if n := len(buf); n > 0 && buf[n-1] == '\\' {
		buf = buf[:n-1]
	}
	return buf, nil
}

// Reconnect replaces the current connection with a fresh one to the same
// address. It is how callers repair a Conn left disconnected.
func (c *Conn) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

// Close drops the connection. Closing a disconnected Conn is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Conn) closeLocked() error {
	if c.conn == nil {
		c.state = StateDisconnected
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	c.state = StateDisconnected
	return err
}

func (c *Conn) connectLocked() error {
	_ = c.closeLocked()

	d := net.Dialer{Timeout: c.cfg.Timeout}
	raw, err := d.Dial("tcp", c.cfg.Address)
	if err != nil {
		return &ConnectError{Addr: c.cfg.Address, Err: err}
	}
	conn := &timeoutConn{Conn: raw, timeout: c.cfg.Timeout}
	reader := frame.NewReader(conn, c.cfg.Limits)

	banner, err := reader.ReadMessage(c.banner)
	c.banner = banner[:0]
	if err != nil {
		_ = raw.Close()
		return &ConnectError{Addr: c.cfg.Address, Err: fmt.Errorf("read banner: %w", err)}
	}

	c.conn = conn
	c.reader = reader
	c.state = StateConnected
	log.Debug().
		Str("component", "session").
		Str("addr", c.cfg.Address).
		Int("banner_bytes", len(banner)).
		Msg("connected")
	return nil
}

// timeoutConn applies the idle timeout as a fresh deadline before each read
// and each write.
type timeoutConn struct {
	net.Conn
	timeout time.Duration
}

func (c *timeoutConn) Read(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}

func (c *timeoutConn) Write(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}
