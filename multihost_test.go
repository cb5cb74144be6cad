package mpdutils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JakeStanger/go-mpd-utils/internal/mpdtest"
	"github.com/JakeStanger/go-mpd-utils/mpd"
)

// newMulti starts n fake servers and a multi-host client over them in
// registry order.
func newMulti(t *testing.T, n int) (*MultiHostClient, []*mpdtest.Server) {
	t.Helper()

	servers := make([]*mpdtest.Server, n)
	hosts := make([]string, n)
	for i := range servers {
		servers[i] = mpdtest.New(t)
		hosts[i] = servers[i].Addr()
	}

	m := NewMultiHost(hosts, testRetry)
	m.Init()
	return m, servers
}

func allConnected(m *MultiHostClient) func() bool {
	return func() bool {
		for _, c := range m.Clients() {
			if !c.IsConnected() {
				return false
			}
		}
		return true
	}
}

func TestWaitForAnyClientFirstWins(t *testing.T) {
	live := mpdtest.New(t)

	m := NewMultiHost([]string{deadAddr(t), live.Addr()}, testRetry)
	m.Init()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := m.WaitForAnyClient(ctx)
	if err != nil {
		t.Fatalf("WaitForAnyClient: %v", err)
	}
	if client == nil {
		t.Fatal("nil handle")
	}

	// The dead host's supervisor keeps retrying unaffected.
	if m.Clients()[0].IsConnected() {
		t.Error("dead host reports connected")
	}
}

func TestWaitForAllClients(t *testing.T) {
	m, servers := newMulti(t, 2)

	// Hold one host back; the wait must not resolve until it connects.
	servers[1].SetRejecting(true)
	servers[1].CloseConns()
	waitFor(t, 2*time.Second, func() bool { return !m.Clients()[1].IsConnected() },
		"held-back host still connected")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		handles []*mpd.Client
		err     error
	}
	done := make(chan result, 1)
	go func() {
		handles, err := m.WaitForAllClients(ctx)
		done <- result{handles, err}
	}()

	select {
	case <-done:
		t.Fatal("WaitForAllClients resolved with a host still down")
	case <-time.After(200 * time.Millisecond):
	}

	servers[1].SetRejecting(false)

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("WaitForAllClients: %v", res.err)
		}
		if len(res.handles) != 2 {
			t.Fatalf("got %d handles, want 2", len(res.handles))
		}
		for i, h := range res.handles {
			if h == nil {
				t.Errorf("handle %d is nil", i)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForAllClients did not resolve")
	}
}

func TestSelectionPrefersPlaying(t *testing.T) {
	m, servers := newMulti(t, 3)
	servers[0].SetState("stop")
	servers[1].SetState("play")
	servers[2].SetState("pause")

	waitFor(t, 2*time.Second, allConnected(m), "hosts never connected")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := m.CurrentClient(ctx)
	if err != nil {
		t.Fatalf("CurrentClient: %v", err)
	}
	if c.Host() != servers[1].Addr() {
		t.Errorf("selected %q, want the playing host %q", c.Host(), servers[1].Addr())
	}
}

func TestSelectionFallbackOrder(t *testing.T) {
	tests := []struct {
		name   string
		states []string
		want   int // index of expected server
	}{
		{name: "PausedOverStopped", states: []string{"stop", "pause"}, want: 1},
		{name: "FirstStoppedByRegistryOrder", states: []string{"stop", "stop"}, want: 0},
		{name: "FirstPlayingByRegistryOrder", states: []string{"play", "play"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, servers := newMulti(t, len(tt.states))
			for i, state := range tt.states {
				servers[i].SetState(state)
			}

			waitFor(t, 2*time.Second, allConnected(m), "hosts never connected")

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			c, err := m.CurrentClient(ctx)
			if err != nil {
				t.Fatalf("CurrentClient: %v", err)
			}
			if c.Host() != servers[tt.want].Addr() {
				t.Errorf("selected %q, want %q", c.Host(), servers[tt.want].Addr())
			}
		})
	}
}

func TestNoQualifyingStateIsNoHost(t *testing.T) {
	m, servers := newMulti(t, 1)
	servers[0].SetState("unknown")

	waitFor(t, 2*time.Second, allConnected(m), "host never connected")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := m.CurrentClient(ctx); !errors.Is(err, ErrNoHostConnected) {
		t.Errorf("err = %v, want ErrNoHostConnected", err)
	}

	err := m.WithClient(ctx, func(ctx context.Context, c *mpd.Client) error { return nil })
	if !errors.Is(err, ErrNoHostConnected) {
		t.Errorf("WithClient err = %v, want ErrNoHostConnected", err)
	}
}

func TestSelectionExcludesFailingHost(t *testing.T) {
	m, servers := newMulti(t, 2)
	servers[0].FailStatus(true)
	servers[0].SetState("play")
	servers[1].SetState("pause")

	waitFor(t, 2*time.Second, allConnected(m), "hosts never connected")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := m.CurrentClient(ctx)
	if err != nil {
		t.Fatalf("CurrentClient: %v", err)
	}
	if c.Host() != servers[1].Addr() {
		t.Errorf("selected %q, want the healthy host %q", c.Host(), servers[1].Addr())
	}
}

func TestSelectionFailsWhenEveryQueryFails(t *testing.T) {
	m, servers := newMulti(t, 2)
	servers[0].FailStatus(true)
	servers[1].FailStatus(true)

	waitFor(t, 2*time.Second, allConnected(m), "hosts never connected")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := m.CurrentClient(ctx)
	var cmdErr *mpd.CommandError
	if !errors.As(err, &cmdErr) {
		t.Errorf("err = %v, want the underlying CommandError", err)
	}
}

func TestMultiHostStatus(t *testing.T) {
	m, servers := newMulti(t, 2)
	servers[1].SetState("play")
	servers[1].SetSong("file: b.flac", "Title: B")

	waitFor(t, 2*time.Second, allConnected(m), "hosts never connected")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != mpd.StatePlay {
		t.Errorf("State = %q, want %q", status.State, mpd.StatePlay)
	}

	song, err := m.CurrentSong(ctx)
	if err != nil {
		t.Fatalf("CurrentSong: %v", err)
	}
	if song == nil || song.Title != "B" {
		t.Errorf("song = %+v, want Title B", song)
	}
}

func TestRecvAttributesOriginHost(t *testing.T) {
	m, servers := newMulti(t, 2)

	waitFor(t, 2*time.Second, allConnected(m), "hosts never connected")

	servers[1].Emit("mixer")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ev, err := m.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if ev.Host != servers[1].Addr() {
		t.Errorf("Host = %q, want %q", ev.Host, servers[1].Addr())
	}
	if ev.Event.Subsystem != mpd.SubsystemMixer {
		t.Errorf("Subsystem = %q, want %q", ev.Event.Subsystem, mpd.SubsystemMixer)
	}
}

func TestCurrentClientHonoursContextWhileDisconnected(t *testing.T) {
	m := NewMultiHost([]string{deadAddr(t)}, testRetry)
	m.Init()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if _, err := m.CurrentClient(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}
