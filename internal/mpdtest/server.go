// Package mpdtest provides a scripted in-process MPD server for tests.
// It speaks just enough of the protocol for the client under test:
// greeting, idle/noidle, status, currentsong and a few control
// commands, with injectable events and failure modes.
package mpdtest

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type Server struct {
	t  *testing.T
	ln net.Listener

	attempts atomic.Int64

	mu        sync.Mutex
	state     string
	song      []string
	statusErr bool
	rejecting bool
	conns     map[net.Conn]chan string
}

// New starts a server on a random loopback port. It is shut down via
// t.Cleanup.
func New(t *testing.T) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("mpdtest: listen: %v", err)
	}

	s := &Server{
		t:     t,
		ln:    ln,
		state: "stop",
		conns: make(map[net.Conn]chan string),
	}
	go s.acceptLoop()
	t.Cleanup(s.Close)

	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// ConnAttempts counts accepted connections, including rejected ones.
func (s *Server) ConnAttempts() int {
	return int(s.attempts.Load())
}

// SetState sets the play state reported by status.
func (s *Server) SetState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// SetSong sets the raw response lines returned by currentsong.
func (s *Server) SetSong(lines ...string) {
	s.mu.Lock()
	s.song = lines
	s.mu.Unlock()
}

// FailStatus makes the status command answer with an ACK.
func (s *Server) FailStatus(fail bool) {
	s.mu.Lock()
	s.statusErr = fail
	s.mu.Unlock()
}

// SetRejecting makes the server drop new connections before the
// greeting, simulating a host that is reachable but not yet serving.
func (s *Server) SetRejecting(rejecting bool) {
	s.mu.Lock()
	s.rejecting = rejecting
	s.mu.Unlock()
}

// Emit queues a subsystem-change event for every live connection.
func (s *Server) Emit(subsystem string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.conns {
		select {
		case ch <- subsystem:
		default:
		}
	}
}

// CloseConns drops every live connection.
func (s *Server) CloseConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}

// Close stops the server.
func (s *Server) Close() {
	s.ln.Close()
	s.CloseConns()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.attempts.Add(1)

		s.mu.Lock()
		if s.rejecting {
			s.mu.Unlock()
			conn.Close()
			continue
		}
		events := make(chan string, 16)
		s.conns[conn] = events
		s.mu.Unlock()

		go s.serve(conn, events)
	}
}

func (s *Server) serve(conn net.Conn, events chan string) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	fmt.Fprint(conn, "OK MPD 0.23.5\n")

	lines := make(chan string)
	go func() {
		defer close(lines)
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			lines <- strings.TrimRight(line, "\r\n")
		}
	}()

	for {
		line, ok := <-lines
		if !ok {
			return
		}
		switch {
		case line == "idle":
			select {
			case ev := <-events:
				fmt.Fprintf(conn, "changed: %s\nOK\n", ev)
			case next, ok := <-lines:
				if !ok {
					return
				}
				if next == "noidle" {
					fmt.Fprint(conn, "OK\n")
				}
			}

		case line == "noidle":
			// The idle round already completed; MPD ignores the noidle
			// silently in this case.

		case line == "status":
			s.mu.Lock()
			failing, state := s.statusErr, s.state
			s.mu.Unlock()
			if failing {
				fmt.Fprint(conn, "ACK [5@0] {status} status unavailable\n")
				continue
			}
			fmt.Fprintf(conn, "volume: 50\nrepeat: 0\nrandom: 0\nstate: %s\nsong: 0\nsongid: 1\nelapsed: 10.500\nduration: 180.000\nplaylistlength: 1\nOK\n", state)

		case line == "currentsong":
			s.mu.Lock()
			song := s.song
			s.mu.Unlock()
			for _, l := range song {
				fmt.Fprintln(conn, l)
			}
			fmt.Fprint(conn, "OK\n")

		case line == "ping", line == "play", line == "next", line == "previous",
			strings.HasPrefix(line, "pause"), strings.HasPrefix(line, "play "):
			fmt.Fprint(conn, "OK\n")

		default:
			name := line
			if i := strings.IndexByte(line, ' '); i > 0 {
				name = line[:i]
			}
			fmt.Fprintf(conn, "ACK [5@0] {%s} unknown command\n", name)
		}
	}
}
