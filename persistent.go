// Package mpdutils provides a resilience layer over MPD control
// connections: a per-host client that reconnects forever, event fan-out
// to independent subscribers, and a multi-host client that presents
// several servers as one logical endpoint, preferring whichever is
// currently playing.
package mpdutils

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JakeStanger/go-mpd-utils/mpd"
)

const (
	// DefaultHost is the standard local MPD TCP address.
	DefaultHost = "localhost:6600"

	// DefaultRetryInterval is the fixed delay between connect attempts.
	DefaultRetryInterval = 5 * time.Second
)

// Option configures a client.
type Option func(*options)

type options struct {
	logger zerolog.Logger
	buffer int
}

func newOptions(opts []Option) options {
	o := options{
		logger: zerolog.Nop(),
		buffer: DefaultEventBuffer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for connection lifecycle messages.
// The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEventBuffer sets the per-subscriber event buffer size.
func WithEventBuffer(n int) Option {
	return func(o *options) { o.buffer = n }
}

// PersistentClient is an MPD client that automatically reconnects,
// forever and at a fixed interval, whenever the connection cannot be
// established or is lost. Commands issued while disconnected suspend
// until the next successful connection.
type PersistentClient struct {
	host          string
	retryInterval time.Duration
	log           zerolog.Logger

	mu     sync.Mutex
	client *mpd.Client   // nil while disconnected
	ready  chan struct{} // closed while connected; replaced on disconnect

	events *Broadcaster
	feed   *Subscription // private feed backing Recv
}

// New creates a client for one host. The connection is not attempted
// until Init is called.
func New(host string, retryInterval time.Duration, opts ...Option) *PersistentClient {
	o := newOptions(opts)
	events := NewBroadcaster(o.buffer)

	return &PersistentClient{
		host:          host,
		retryInterval: retryInterval,
		log:           o.logger.With().Str("host", host).Logger(),
		ready:         make(chan struct{}),
		events:        events,
		feed:          events.Subscribe(),
	}
}

// NewDefault creates a client for the default localhost address with
// the default retry interval.
func NewDefault(opts ...Option) *PersistentClient {
	return New(DefaultHost, DefaultRetryInterval, opts...)
}

// Init starts the background reconnect loop. Call once; the loop runs
// for the lifetime of the process.
func (c *PersistentClient) Init() {
	go c.run()
}

func (c *PersistentClient) run() {
	for {
		client, err := mpd.Connect(context.Background(), c.host)
		if err != nil {
			c.log.Error().Err(err).Msg("failed to connect")
			c.setDisconnected()
		} else {
			c.log.Info().Str("version", client.Version()).Msg("connected")
			c.setConnected(client)

			for ev := range client.Events() {
				c.log.Debug().Str("subsystem", string(ev.Subsystem)).Msg("forwarding event")
				c.events.Publish(ev)
			}

			c.log.Error().Msg("lost connection")
			c.setDisconnected()
		}

		time.Sleep(c.retryInterval)
	}
}

func (c *PersistentClient) setConnected(client *mpd.Client) {
	c.mu.Lock()
	c.client = client
	close(c.ready)
	c.mu.Unlock()
}

// setDisconnected publishes the disconnected state. Idempotent: after a
// failed connect attempt there is nothing to tear down.
func (c *PersistentClient) setDisconnected() {
	c.mu.Lock()
	if c.client != nil {
		c.client = nil
		c.ready = make(chan struct{})
	}
	c.mu.Unlock()
}

// Host returns the configured host address or socket path.
func (c *PersistentClient) Host() string {
	return c.host
}

// IsConnected reports whether there is currently a live connection.
func (c *PersistentClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil
}

// WaitForClient waits for a live connection. If already connected it
// resolves immediately with the current handle; otherwise it suspends
// until the next successful connect. The handle stays valid for
// in-flight use even if the client reconnects afterwards.
func (c *PersistentClient) WaitForClient(ctx context.Context) (*mpd.Client, error) {
	for {
		c.mu.Lock()
		if c.client != nil {
			client := c.client
			c.mu.Unlock()
			return client, nil
		}
		ready := c.ready
		c.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// WithClient waits for a live connection and applies fn to it exactly
// once. fn is not retried if it fails.
func (c *PersistentClient) WithClient(ctx context.Context, fn func(context.Context, *mpd.Client) error) error {
	client, err := c.WaitForClient(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, client)
}

// Command waits for a live connection and executes cmd on it. A server
// rejection is returned unchanged and never retried.
func (c *PersistentClient) Command(ctx context.Context, cmd mpd.Command) (mpd.Response, error) {
	client, err := c.WaitForClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.Execute(ctx, cmd)
}

// Status runs the status command.
func (c *PersistentClient) Status(ctx context.Context) (mpd.Status, error) {
	client, err := c.WaitForClient(ctx)
	if err != nil {
		return mpd.Status{}, err
	}
	return client.Status(ctx)
}

// CurrentSong runs the currentsong command.
func (c *PersistentClient) CurrentSong(ctx context.Context) (*mpd.Song, error) {
	client, err := c.WaitForClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.CurrentSong(ctx)
}

// Recv returns the next event on this client's private ordered feed.
// Events survive reconnects: the feed carries events from every
// connection this client establishes.
func (c *PersistentClient) Recv(ctx context.Context) (mpd.Event, error) {
	return c.feed.Recv(ctx)
}

// Subscribe creates an additional, independently-cursored event feed.
func (c *PersistentClient) Subscribe() *Subscription {
	return c.events.Subscribe()
}
