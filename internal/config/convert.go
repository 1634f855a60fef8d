package config

import (
	"github.com/danmuck/fahctl/internal/protocol/frame"
	"github.com/danmuck/fahctl/internal/protocol/session"
)

// Session returns the session settings described by c.
func (c Config) Session() session.Config {
	sess := session.DefaultConfig()
	sess.Address = c.Address
	sess.Timeout = c.Timeout
	sess.Limits = frame.Limits{MaxMessageBytes: c.MaxMessageBytes}
	sess.Backoff = c.Backoff
	return sess
}
