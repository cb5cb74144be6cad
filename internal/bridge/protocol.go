package bridge

import (
	"encoding/json"

	"github.com/JakeStanger/go-mpd-utils/mpd"
)

type MessageType string

const (
	// MsgSnapshot carries the state of every connected host. Sent once
	// when a client connects.
	MsgSnapshot MessageType = "snapshot"

	// MsgPlayer carries the state of one host after a change.
	MsgPlayer MessageType = "player"
)

type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type SnapshotPayload struct {
	Players []PlayerPayload `json:"players"`
}

type PlayerPayload struct {
	Host           string        `json:"host"`
	State          mpd.PlayState `json:"state"`
	Volume         int           `json:"volume"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
	Song           *SongPayload  `json:"song,omitempty"`
}

type SongPayload struct {
	URI             string `json:"uri"`
	Title           string `json:"title,omitempty"`
	Artist          string `json:"artist,omitempty"`
	Album           string `json:"album,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

func newMessage(t MessageType, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: data}, nil
}

func playerPayload(host string, status mpd.Status, song *mpd.Song) PlayerPayload {
	p := PlayerPayload{
		Host:           host,
		State:          status.State,
		Volume:         status.Volume,
		ElapsedSeconds: status.Elapsed.Seconds(),
	}
	if song != nil {
		p.Song = &SongPayload{
			URI:             song.URI,
			Title:           song.Title,
			Artist:          song.Artist,
			Album:           song.Album,
			DurationSeconds: song.Duration.Seconds(),
		}
	}
	return p
}
