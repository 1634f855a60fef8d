// Package session owns the connection to the daemon's console port.
//
// Ownership boundary:
// - dialing and discarding the welcome banner
// - command execution over the prompt framer
// - the single reconnect after the daemon closes the stream
// - start-up retry/backoff
//
// A Conn carries one outstanding command at a time. Timeouts are reported to
// the caller and never cause a reconnect.
package session
