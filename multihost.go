package mpdutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JakeStanger/go-mpd-utils/mpd"
)

// HostEvent is an event tagged with the host that produced it.
type HostEvent struct {
	Host  string
	Event mpd.Event
}

// MultiHostClient presents several MPD hosts as one logical endpoint.
// Commands run against the currently most relevant host: the first
// playing one, else the first paused, else the first stopped, in the
// order the hosts were given at construction.
type MultiHostClient struct {
	clients []*PersistentClient
	merged  chan HostEvent
	log     zerolog.Logger
}

// NewMultiHost creates a client over an ordered list of hosts. The
// order is the tie-break for host selection and never changes.
func NewMultiHost(hosts []string, retryInterval time.Duration, opts ...Option) *MultiHostClient {
	o := newOptions(opts)

	clients := make([]*PersistentClient, len(hosts))
	for i, host := range hosts {
		clients[i] = New(host, retryInterval, opts...)
	}

	return &MultiHostClient{
		clients: clients,
		merged:  make(chan HostEvent, o.buffer),
		log:     o.logger,
	}
}

// Init starts every member client and the event forwarders feeding the
// merged feed behind Recv.
func (m *MultiHostClient) Init() {
	for _, c := range m.clients {
		c.Init()
		go m.forward(c)
	}
}

// forward moves one member's events onto the merged feed.
func (m *MultiHostClient) forward(c *PersistentClient) {
	sub := c.Subscribe()
	for {
		ev, err := sub.Recv(context.Background())
		if err != nil {
			var lagged *LaggedError
			if errors.As(err, &lagged) {
				m.log.Warn().
					Str("host", c.Host()).
					Int("missed", lagged.Missed).
					Msg("merged feed fell behind")
				continue
			}
			return
		}
		m.merged <- HostEvent{Host: c.Host(), Event: ev}
	}
}

// Clients returns the member clients in registry order.
func (m *MultiHostClient) Clients() []*PersistentClient {
	return m.clients
}

// WaitForAnyClient resolves with the handle of whichever member
// connects first. The other members keep running unaffected.
func (m *MultiHostClient) WaitForAnyClient(ctx context.Context) (*mpd.Client, error) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan *mpd.Client, len(m.clients))
	for _, c := range m.clients {
		go func(c *PersistentClient) {
			if client, err := c.WaitForClient(waitCtx); err == nil {
				results <- client
			}
		}(c)
	}

	select {
	case client := <-results:
		return client, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitForAllClients resolves once every member has connected at least
// once, returning the handles in registry order.
func (m *MultiHostClient) WaitForAllClients(ctx context.Context) ([]*mpd.Client, error) {
	handles := make([]*mpd.Client, len(m.clients))
	errs := make([]error, len(m.clients))

	var wg sync.WaitGroup
	for i, c := range m.clients {
		wg.Add(1)
		go func(i int, c *PersistentClient) {
			defer wg.Done()
			handles[i], errs[i] = c.WaitForClient(ctx)
		}(i, c)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return handles, nil
}

// CurrentClient finds the currently most relevant member: the first
// playing host, else the first paused, else the first stopped. Returns
// ErrNoHostConnected when no connected host qualifies.
func (m *MultiHostClient) CurrentClient(ctx context.Context) (*PersistentClient, error) {
	c, err := m.getCurrentClient(ctx)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNoHostConnected
	}
	return c, nil
}

// getCurrentClient implements the selection policy. Returns (nil, nil)
// when no connected host qualifies. A host whose status query fails is
// excluded from candidacy; selection fails only when every query does.
func (m *MultiHostClient) getCurrentClient(ctx context.Context) (*PersistentClient, error) {
	if _, err := m.WaitForAnyClient(ctx); err != nil {
		return nil, err
	}

	var connected []*PersistentClient
	for _, c := range m.clients {
		if c.IsConnected() {
			connected = append(connected, c)
		}
	}
	if len(connected) == 0 {
		return nil, nil
	}

	states := make([]mpd.PlayState, len(connected))
	errs := make([]error, len(connected))

	var wg sync.WaitGroup
	for i, c := range connected {
		wg.Add(1)
		go func(i int, c *PersistentClient) {
			defer wg.Done()
			status, err := c.Status(ctx)
			if err != nil {
				errs[i] = err
				return
			}
			states[i] = status.State
		}(i, c)
	}
	wg.Wait()

	var queryErr error
	healthy := false
	for i, c := range connected {
		if errs[i] != nil {
			queryErr = errs[i]
			m.log.Warn().Err(errs[i]).Str("host", c.Host()).Msg("status query failed, excluding host")
			continue
		}
		healthy = true
	}
	if !healthy {
		return nil, queryErr
	}

	for _, want := range []mpd.PlayState{mpd.StatePlay, mpd.StatePause, mpd.StateStop} {
		for i, c := range connected {
			if errs[i] == nil && states[i] == want {
				return c, nil
			}
		}
	}
	return nil, nil
}

// WithClient applies fn on the currently most relevant host. Fails with
// ErrNoHostConnected when none qualifies, or with the underlying error
// when selection itself failed.
func (m *MultiHostClient) WithClient(ctx context.Context, fn func(context.Context, *mpd.Client) error) error {
	c, err := m.CurrentClient(ctx)
	if err != nil {
		return err
	}
	return c.WithClient(ctx, fn)
}

// Status runs the status command on the currently most relevant host.
func (m *MultiHostClient) Status(ctx context.Context) (mpd.Status, error) {
	c, err := m.CurrentClient(ctx)
	if err != nil {
		return mpd.Status{}, err
	}
	return c.Status(ctx)
}

// CurrentSong runs the currentsong command on the currently most
// relevant host.
func (m *MultiHostClient) CurrentSong(ctx context.Context) (*mpd.Song, error) {
	c, err := m.CurrentClient(ctx)
	if err != nil {
		return nil, err
	}
	return c.CurrentSong(ctx)
}

// Recv returns the next event from whichever member produces one first,
// tagged with its originating host.
func (m *MultiHostClient) Recv(ctx context.Context) (HostEvent, error) {
	select {
	case ev := <-m.merged:
		return ev, nil
	case <-ctx.Done():
		return HostEvent{}, ctx.Err()
	}
}
