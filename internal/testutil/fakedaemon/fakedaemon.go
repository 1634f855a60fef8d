// Package fakedaemon runs an in-process TCP stand-in for the FAH console
// port. It prints a banner followed by the prompt, then answers each command
// line through a handler.
package fakedaemon

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

const (
	Banner = "Welcome to the Folding@home Client command server."
	prompt = "\n> "
)

// Reply is what the daemon does with one command.
type Reply struct {
	Body string
	// Drop closes the connection instead of answering.
	Drop bool
	// Silent sends nothing and keeps the connection open.
	Silent bool
}

// Handler maps one command line to its reply.
type Handler func(cmd string) Reply

// Server is a running fake daemon.
type Server struct {
	addr    string
	handler Handler
	banner  string

	accepts  atomic.Int64
	mu       sync.Mutex
	ln       net.Listener
	conns    []net.Conn
	commands []string
	wg       sync.WaitGroup
}

// Text answers every command with body.
func Text(body string) Reply {
	return Reply{Body: body}
}

// PyON wraps payload in a version 1 envelope of the given type.
func PyON(kind, payload string) Reply {
	return Reply{Body: "PyON 1 " + kind + "\n" + payload + "\n---"}
}

// Start listens on a loopback port and stops the server on test cleanup.
func Start(t testing.TB, handler Handler) *Server {
	t.Helper()
	return StartWithBanner(t, Banner, handler)
}

// StartWithBanner is Start with a custom banner. An empty banner closes each
// connection without writing anything.
func StartWithBanner(t testing.TB, banner string, handler Handler) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("fakedaemon listen: %v", err)
	}
	if handler == nil {
		handler = func(string) Reply { return Reply{} }
	}
	s := &Server{addr: ln.Addr().String(), ln: ln, handler: handler, banner: banner}
	s.wg.Add(1)
	go s.acceptLoop(ln)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Addr() string {
	return s.addr
}

// Accepts returns how many connections the server has accepted.
func (s *Server) Accepts() int {
	return int(s.accepts.Load())
}

// Commands returns every command line received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// DropAll closes every open client connection.
func (s *Server) DropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

// StopAccepting closes the listener. Open connections stay up.
func (s *Server) StopAccepting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.ln.Close()
}

// StartAccepting listens again on the original address after StopAccepting,
// as a restarted daemon would.
func (s *Server) StartAccepting(t testing.TB) {
	t.Helper()
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		t.Fatalf("fakedaemon relisten %s: %v", s.addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.wg.Add(1)
	go s.acceptLoop(ln)
}

func (s *Server) Close() {
	s.StopAccepting()
	s.DropAll()
	s.wg.Wait()
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s.accepts.Add(1)
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	if s.banner == "" {
		return
	}
	if _, err := conn.Write([]byte(s.banner + prompt)); err != nil {
		return
	}

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		cmd := strings.TrimSuffix(sc.Text(), "\r")
		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		s.mu.Unlock()

		reply := s.handler(cmd)
		switch {
		case reply.Drop:
			return
		case reply.Silent:
			continue
		}
		if _, err := conn.Write([]byte("\n" + reply.Body + prompt)); err != nil {
			return
		}
	}
}
