// Package mpd implements a minimal MPD protocol session: dialling a host
// (TCP or unix socket), running commands, and receiving idle events.
//
// A Client owns its connection. Commands are serialized internally and
// interleaved with the idle loop, so callers may execute commands from
// any goroutine while events keep flowing.
package mpd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// ErrClosed is returned by operations on a connection that has been
// closed or lost. The Events channel closing is the authoritative
// signal that the session is gone.
var ErrClosed = errors.New("mpd: connection closed")

const greetingPrefix = "OK MPD "

// Client is one live session to an MPD server.
type Client struct {
	conn    net.Conn
	version string

	requests chan execRequest
	events   chan Event

	closeOnce sync.Once
	done      chan struct{}
}

type execRequest struct {
	cmd   Command
	reply chan execResult
}

type execResult struct {
	resp Response
	err  error
}

// Connect dials host, performs the protocol handshake and starts the
// connection goroutine. The context bounds the dial and handshake only.
func Connect(ctx context.Context, host string) (*Client, error) {
	conn, err := dial(ctx, host)
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	r := bufio.NewReader(conn)
	greeting, err := r.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mpd: reading greeting: %w", err)
	}
	greeting = strings.TrimRight(greeting, "\r\n")
	if !strings.HasPrefix(greeting, greetingPrefix) {
		conn.Close()
		return nil, fmt.Errorf("mpd: unexpected greeting %q", greeting)
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := &Client{
		conn:     conn,
		version:  strings.TrimPrefix(greeting, greetingPrefix),
		requests: make(chan execRequest),
		events:   make(chan Event),
		done:     make(chan struct{}),
	}
	go c.run(r)

	return c, nil
}

// Version reports the protocol version from the server greeting.
func (c *Client) Version() string {
	return c.version
}

// Events returns the ordered stream of subsystem-change events. The
// channel is closed when the connection is lost or Close is called;
// no events are delivered after that.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Execute runs one command and returns its response. A server rejection
// is returned as a *CommandError; a dead connection yields ErrClosed.
func (c *Client) Execute(ctx context.Context, cmd Command) (Response, error) {
	req := execRequest{cmd: cmd, reply: make(chan execResult, 1)}

	select {
	case c.requests <- req:
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// The request channel is unbuffered, so acceptance means the
	// connection goroutine is processing it and will always reply.
	select {
	case res := <-req.reply:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status runs the status command.
func (c *Client) Status(ctx context.Context) (Status, error) {
	resp, err := c.Execute(ctx, Cmd("status"))
	if err != nil {
		return Status{}, err
	}
	return ParseStatus(resp), nil
}

// CurrentSong runs the currentsong command. Returns nil with no error
// when nothing is queued.
func (c *Client) CurrentSong(ctx context.Context) (*Song, error) {
	resp, err := c.Execute(ctx, Cmd("currentsong"))
	if err != nil {
		return nil, err
	}
	return ParseSong(resp), nil
}

// Close tears down the connection. Idempotent.
func (c *Client) Close() error {
	c.shutdown()
	return nil
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) writeLine(line string) error {
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

// run owns the connection: it keeps the session in idle, interrupting
// with noidle to execute commands, and forwards change events.
func (c *Client) run(r *bufio.Reader) {
	defer close(c.events)
	defer c.shutdown()

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			select {
			case lines <- strings.TrimRight(line, "\r\n"):
			case <-c.done:
				return
			}
		}
	}()

	for {
		if err := c.writeLine("idle"); err != nil {
			return
		}

	idle:
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return
				}
				if line == "OK" {
					// Server ended the idle round on its own.
					break idle
				}
				if f, ok := parseField(line); ok && f.Key == "changed" {
					if !c.emit(Event{Subsystem: Subsystem(f.Value)}) {
						return
					}
				}

			case req := <-c.requests:
				if err := c.writeLine("noidle"); err != nil {
					req.reply <- execResult{err: ErrClosed}
					return
				}
				if !c.drainIdle(lines) {
					req.reply <- execResult{err: ErrClosed}
					return
				}
				res := c.exchange(req.cmd, lines)
				req.reply <- res
				if errors.Is(res.err, ErrClosed) {
					return
				}
				break idle

			case <-c.done:
				return
			}
		}
	}
}

// drainIdle consumes the tail of an interrupted idle command up to its
// OK, forwarding any change events that raced the noidle. Reports
// whether the connection is still usable.
func (c *Client) drainIdle(lines <-chan string) bool {
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return false
			}
			if line == "OK" {
				return true
			}
			if f, ok := parseField(line); ok && f.Key == "changed" {
				if !c.emit(Event{Subsystem: Subsystem(f.Value)}) {
					return false
				}
			}
		case <-c.done:
			return false
		}
	}
}

func (c *Client) exchange(cmd Command, lines <-chan string) execResult {
	if err := c.writeLine(cmd.encode()); err != nil {
		return execResult{err: ErrClosed}
	}

	var resp Response
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return execResult{err: ErrClosed}
			}
			if line == "OK" {
				return execResult{resp: resp}
			}
			if ackErr := parseAck(line); ackErr != nil {
				return execResult{err: ackErr}
			}
			if f, ok := parseField(line); ok {
				resp = append(resp, f)
			}
		case <-c.done:
			return execResult{err: ErrClosed}
		}
	}
}

func (c *Client) emit(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}
