package session

import (
	"time"

	"github.com/danmuck/fahctl/internal/protocol/frame"
)

// DefaultAddress is the FAH client command port on the local host.
const DefaultAddress = "127.0.0.1:36330"

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines how a Conn reaches the daemon.
type Config struct {
	Address string
	// Timeout bounds the dial and every single read or write. Zero disables
	// deadlines.
	Timeout time.Duration
	Limits  frame.Limits
	Backoff BackoffConfig
	// OnReconnect, when set, observes every automatic reconnect. err is nil
	// when the reconnect succeeded.
	OnReconnect func(addr string, err error)
}

// DefaultConfig returns defaults for a daemon on the local host.
func DefaultConfig() Config {
	return Config{
		Address: DefaultAddress,
		Timeout: 5 * time.Second,
		Limits:  frame.DefaultLimits(),
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}
