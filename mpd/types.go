package mpd

import (
	"math"
	"strconv"
	"time"
)

// PlayState is the playback state reported by the status command.
type PlayState string

const (
	StatePlay  PlayState = "play"
	StatePause PlayState = "pause"
	StateStop  PlayState = "stop"
)

// Subsystem identifies which part of the server an idle event refers to.
type Subsystem string

const (
	SubsystemDatabase       Subsystem = "database"
	SubsystemUpdate         Subsystem = "update"
	SubsystemStoredPlaylist Subsystem = "stored_playlist"
	SubsystemPlaylist       Subsystem = "playlist"
	SubsystemPlayer         Subsystem = "player"
	SubsystemMixer          Subsystem = "mixer"
	SubsystemOutput         Subsystem = "output"
	SubsystemOptions        Subsystem = "options"
	SubsystemPartition      Subsystem = "partition"
	SubsystemSticker        Subsystem = "sticker"
	SubsystemSubscription   Subsystem = "subscription"
	SubsystemMessage        Subsystem = "message"
)

// Event is a server-pushed notification that a subsystem changed.
type Event struct {
	Subsystem Subsystem
}

// Status is the typed view of the status command response.
type Status struct {
	State          PlayState
	Volume         int
	Repeat         bool
	Random         bool
	Single         bool
	Consume        bool
	Song           int // queue position of the current song, -1 if none
	SongID         int
	Elapsed        time.Duration
	Duration       time.Duration
	PlaylistLength int
}

// ParseStatus builds a Status from a raw status response.
func ParseStatus(resp Response) Status {
	s := Status{
		State:  StateStop,
		Song:   -1,
		SongID: -1,
	}

	if v, ok := resp.Get("state"); ok {
		s.State = PlayState(v)
	}
	s.Volume = resp.GetInt("volume", -1)
	s.Repeat = resp.GetBool("repeat")
	s.Random = resp.GetBool("random")
	s.Single = resp.GetBool("single")
	s.Consume = resp.GetBool("consume")
	s.Song = resp.GetInt("song", -1)
	s.SongID = resp.GetInt("songid", -1)
	s.Elapsed = resp.GetSeconds("elapsed")
	s.Duration = resp.GetSeconds("duration")
	s.PlaylistLength = resp.GetInt("playlistlength", 0)

	return s
}

// Song describes one entry in the queue.
type Song struct {
	URI      string
	Title    string
	Artist   string
	Album    string
	Position int // queue position
	ID       int
	Duration time.Duration
}

// ParseSong builds a Song from a currentsong (or playlistinfo entry)
// response. Returns nil if the response carries no song.
func ParseSong(resp Response) *Song {
	uri, ok := resp.Get("file")
	if !ok {
		return nil
	}

	s := &Song{URI: uri}
	s.Title, _ = resp.Get("Title")
	s.Artist, _ = resp.Get("Artist")
	s.Album, _ = resp.Get("Album")
	s.Position = resp.GetInt("Pos", -1)
	s.ID = resp.GetInt("Id", -1)
	s.Duration = resp.GetSeconds("duration")
	if s.Duration == 0 {
		// Older servers only report the integer Time field.
		if t := resp.GetInt("Time", 0); t > 0 {
			s.Duration = time.Duration(t) * time.Second
		}
	}

	return s
}

func parseSeconds(v string) time.Duration {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return time.Duration(math.Round(f * float64(time.Second)))
}
