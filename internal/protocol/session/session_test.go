package session

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/fahctl/internal/protocol/frame"
	"github.com/danmuck/fahctl/internal/testutil/fakedaemon"
	"github.com/danmuck/fahctl/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
	cfg.Jitter = true
	if got := NextBackoffDelay(cfg, 2, nil); got != 250*time.Millisecond {
		t.Fatalf("jitter without rng got=%v", got)
	}
}

func dialTest(t *testing.T, srv *fakedaemon.Server) *Conn {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Address = srv.Addr()
	cfg.Timeout = 2 * time.Second
	c, err := DialConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDialDiscardsBanner(t *testing.T) {
	testlog.Start(t)
	srv := fakedaemon.Start(t, func(cmd string) fakedaemon.Reply {
		if cmd == "num-slots" {
			return fakedaemon.PyON("num-slots", "2")
		}
		return fakedaemon.Text("unknown")
	})
	c := dialTest(t, srv)
	require.Equal(t, StateConnected, c.State())

	buf, err := c.Exec("num-slots", nil)
	require.NoError(t, err)
	require.Equal(t, "PyON 1 num-slots\n2\n---", string(buf))
	require.Equal(t, []string{"num-slots"}, srv.Commands())
}

func TestExecEmptyCommandSkipsIO(t *testing.T) {
	testlog.Start(t)
	srv := fakedaemon.Start(t, nil)
	c := dialTest(t, srv)

	buf, err := c.Exec("", []byte("stale"))
	require.NoError(t, err)
	require.Empty(t, buf)

	buf, err = c.ExecEval("", []byte("stale"))
	require.NoError(t, err)
	require.Empty(t, buf)
	require.Empty(t, srv.Commands())
}

func TestExecRejectsNewline(t *testing.T) {
	testlog.Start(t)
	srv := fakedaemon.Start(t, nil)
	c := dialTest(t, srv)

	_, err := c.Exec("pause\nshutdown", nil)
	require.ErrorIs(t, err, frame.ErrCommandNewline)
	_, err = c.ExecEval("a\nb", nil)
	require.ErrorIs(t, err, frame.ErrCommandNewline)

	require.Empty(t, srv.Commands())
	require.Equal(t, StateConnected, c.State())
	require.Equal(t, 1, srv.Accepts())
}

func TestExecSequentialResponses(t *testing.T) {
	testlog.Start(t)
	srv := fakedaemon.Start(t, func(cmd string) fakedaemon.Reply {
		return fakedaemon.Text("echo " + cmd)
	})
	c := dialTest(t, srv)

	var buf []byte
	var err error
	for _, cmd := range []string{"a", "b", "c"} {
		buf, err = c.Exec(cmd, buf)
		require.NoError(t, err)
		require.Equal(t, "echo "+cmd, string(buf))
	}
}

func TestExecAfterOversizeResponse(t *testing.T) {
	testlog.Start(t)
	srv := fakedaemon.Start(t, func(cmd string) fakedaemon.Reply {
		if cmd == "big" {
			return fakedaemon.Text(strings.Repeat("x", 5000))
		}
		return fakedaemon.Text("ok-" + cmd)
	})
	cfg := DefaultConfig()
	cfg.Address = srv.Addr()
	cfg.Timeout = 2 * time.Second
	cfg.Limits = frame.Limits{MaxMessageBytes: 100}
	c, err := DialConfig(cfg)
	require.NoError(t, err)
	defer c.Close()

	buf, err := c.Exec("big", nil)
	require.ErrorIs(t, err, frame.ErrMessageTooLarge)
	require.Empty(t, buf)
	require.Equal(t, StateConnected, c.State())

	buf, err = c.Exec("ping", buf)
	require.NoError(t, err)
	require.Equal(t, "ok-ping", string(buf))
	require.Equal(t, 1, srv.Accepts())
}

func TestExecEvalStripsTrailingBackslash(t *testing.T) {
	testlog.Start(t)
	srv := fakedaemon.Start(t, func(cmd string) fakedaemon.Reply {
		switch cmd {
		case `eval "$(uptime)\n"`:
			return fakedaemon.Text(`2 days 3 hours\`)
		case `eval "$(plain)\n"`:
			return fakedaemon.Text("no slash")
		}
		return fakedaemon.Text("bad")
	})
	c := dialTest(t, srv)

	buf, err := c.ExecEval("uptime", nil)
	require.NoError(t, err)
	require.Equal(t, "2 days 3 hours", string(buf))

	buf, err = c.ExecEval("plain", buf)
	require.NoError(t, err)
	require.Equal(t, "no slash", string(buf))
}

func TestExecReconnectsOnceOnEndOfStream(t *testing.T) {
	testlog.Start(t)
	srv := fakedaemon.Start(t, func(cmd string) fakedaemon.Reply {
		if cmd == "shutdown" {
			return fakedaemon.Reply{Drop: true}
		}
		return fakedaemon.Text("ok")
	})

	var mu sync.Mutex
	var reconnects []string
	cfg := DefaultConfig()
	cfg.Address = srv.Addr()
	cfg.Timeout = 2 * time.Second
	cfg.OnReconnect = func(addr string, err error) {
		mu.Lock()
		defer mu.Unlock()
		require.NoError(t, err)
		reconnects = append(reconnects, addr)
	}
	c, err := DialConfig(cfg)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Exec("shutdown", nil)
	require.ErrorIs(t, err, ErrEndOfStream)
	require.Equal(t, StateConnected, c.State())
	require.Equal(t, 2, srv.Accepts())

	mu.Lock()
	require.Equal(t, []string{srv.Addr()}, reconnects)
	mu.Unlock()

	buf, err := c.Exec("ping", nil)
	require.NoError(t, err)
	require.Equal(t, "ok", string(buf))
	require.Equal(t, []string{"shutdown", "ping"}, srv.Commands())
}

func TestExecReturnsReconnectError(t *testing.T) {
	testlog.Start(t)
	var srv *fakedaemon.Server
	srv = fakedaemon.Start(t, func(cmd string) fakedaemon.Reply {
		srv.StopAccepting()
		return fakedaemon.Reply{Drop: true}
	})
	c := dialTest(t, srv)

	_, err := c.Exec("shutdown", nil)
	var connErr *ConnectError
	require.ErrorAs(t, err, &connErr)
	require.Equal(t, srv.Addr(), connErr.Addr)
	require.Equal(t, StateDisconnected, c.State())

	_, err = c.Exec("ping", nil)
	require.ErrorIs(t, err, ErrNotConnected)
	require.Equal(t, []string{"shutdown"}, srv.Commands())
}

func TestTimeoutDoesNotReconnect(t *testing.T) {
	testlog.Start(t)
	srv := fakedaemon.Start(t, func(cmd string) fakedaemon.Reply {
		return fakedaemon.Reply{Silent: true}
	})
	cfg := DefaultConfig()
	cfg.Address = srv.Addr()
	cfg.Timeout = 100 * time.Millisecond
	c, err := DialConfig(cfg)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Exec("slot-info", nil)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	require.True(t, netErr.Timeout())
	require.NotErrorIs(t, err, ErrEndOfStream)
	require.Equal(t, 1, srv.Accepts())
	require.Equal(t, StateConnected, c.State())
}

func TestDialFailsWhenBannerMissing(t *testing.T) {
	testlog.Start(t)
	srv := fakedaemon.StartWithBanner(t, "", nil)

	_, err := Dial(srv.Addr(), time.Second)
	var connErr *ConnectError
	require.ErrorAs(t, err, &connErr)
	require.ErrorIs(t, err, ErrEndOfStream)
}

func TestReconnectAndClose(t *testing.T) {
	testlog.Start(t)
	srv := fakedaemon.Start(t, func(cmd string) fakedaemon.Reply {
		return fakedaemon.Text("ok")
	})
	c := dialTest(t, srv)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.Equal(t, StateDisconnected, c.State())

	_, err := c.Exec("ping", nil)
	require.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, c.Reconnect())
	require.Equal(t, StateConnected, c.State())
	buf, err := c.Exec("ping", nil)
	require.NoError(t, err)
	require.Equal(t, "ok", string(buf))
	require.Equal(t, 2, srv.Accepts())
}

func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestDialRetryExhaustsAttempts(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Address = closedAddr(t)
	cfg.Timeout = time.Second
	cfg.Backoff = BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 2}

	_, err := DialRetry(context.Background(), cfg, 3)
	var connErr *ConnectError
	require.ErrorAs(t, err, &connErr)
	require.Equal(t, cfg.Address, connErr.Addr)
}

func TestDialRetryHonorsContext(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Address = closedAddr(t)
	cfg.Backoff = BackoffConfig{InitialDelay: time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := DialRetry(ctx, cfg, 5)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 10*time.Second)
}

func TestDialRetryConnects(t *testing.T) {
	testlog.Start(t)
	srv := fakedaemon.Start(t, nil)
	cfg := DefaultConfig()
	cfg.Address = srv.Addr()

	c, err := DialRetry(context.Background(), cfg, 2)
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, srv.Addr(), c.Addr())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "connected", StateConnected.String())
	require.Equal(t, "disconnected", StateDisconnected.String())
	require.True(t, errors.Is(ErrEndOfStream, frame.ErrEndOfStream))
}
