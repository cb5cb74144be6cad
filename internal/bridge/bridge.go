// Package bridge serves the merged event feed of a multi-host MPD
// client over WebSocket, plus JSON query endpoints. Connected clients
// get a snapshot of every host on connect and a player message
// whenever a host's playback state changes.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	mpdutils "github.com/JakeStanger/go-mpd-utils"
	"github.com/JakeStanger/go-mpd-utils/mpd"
)

const queryTimeout = 5 * time.Second

type Bridge struct {
	players *mpdutils.MultiHostClient
	hub     *Hub
	log     zerolog.Logger
}

func New(players *mpdutils.MultiHostClient, hub *Hub, log zerolog.Logger) *Bridge {
	return &Bridge{
		players: players,
		hub:     hub,
		log:     log,
	}
}

// relevantSubsystem reports whether a change to the subsystem affects
// what the bridge reports.
func relevantSubsystem(s mpd.Subsystem) bool {
	switch s {
	case mpd.SubsystemPlayer, mpd.SubsystemMixer, mpd.SubsystemPlaylist, mpd.SubsystemOptions:
		return true
	}
	return false
}

// Run pumps events from the multi-host client into the hub until the
// context is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		ev, err := b.players.Recv(ctx)
		if err != nil {
			return err
		}
		if !relevantSubsystem(ev.Event.Subsystem) {
			continue
		}

		payload, err := b.queryHost(ctx, ev.Host)
		if err != nil {
			b.log.Warn().Err(err).Str("host", ev.Host).Msg("failed to query host after event")
			continue
		}

		msg, err := newMessage(MsgPlayer, payload)
		if err != nil {
			continue
		}
		b.hub.Broadcast(msg)
	}
}

// queryHost fetches the current player state of one member host.
func (b *Bridge) queryHost(ctx context.Context, host string) (PlayerPayload, error) {
	var member *mpdutils.PersistentClient
	for _, c := range b.players.Clients() {
		if c.Host() == host {
			member = c
			break
		}
	}
	if member == nil {
		return PlayerPayload{}, fmt.Errorf("unknown host %q", host)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	status, err := member.Status(ctx)
	if err != nil {
		return PlayerPayload{}, err
	}
	song, err := member.CurrentSong(ctx)
	if err != nil {
		return PlayerPayload{}, err
	}

	return playerPayload(host, status, song), nil
}

// Snapshot builds the state of every currently connected host. Hosts
// that fail to answer in time are omitted.
func (b *Bridge) Snapshot(ctx context.Context) Message {
	payload := SnapshotPayload{Players: []PlayerPayload{}}

	for _, c := range b.players.Clients() {
		if !c.IsConnected() {
			continue
		}
		p, err := b.queryHost(ctx, c.Host())
		if err != nil {
			b.log.Warn().Err(err).Str("host", c.Host()).Msg("host omitted from snapshot")
			continue
		}
		payload.Players = append(payload.Players, p)
	}

	msg, err := newMessage(MsgSnapshot, payload)
	if err != nil {
		return Message{Type: MsgSnapshot}
	}
	return msg
}
