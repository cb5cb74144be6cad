// Package tui implements the mpd-now terminal now-playing view over a
// multi-host MPD client.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	mpdutils "github.com/JakeStanger/go-mpd-utils"
	"github.com/JakeStanger/go-mpd-utils/mpd"
)

const queryTimeout = 5 * time.Second

// Model is the root Bubble Tea model.
type Model struct {
	players *mpdutils.MultiHostClient
	ctx     context.Context
	cancel  context.CancelFunc

	keys    KeyMap
	spinner spinner.Model
	width   int
	height  int

	connected bool
	host      string
	status    mpd.Status
	song      *mpd.Song
	err       error
}

type connectedMsg struct{}

type playerMsg struct {
	host   string
	status mpd.Status
	song   *mpd.Song
}

type playerErrMsg struct{ err error }

type eventMsg struct{ ev mpdutils.HostEvent }

type tickMsg time.Time

// New creates the root model. The multi-host client must already be
// initialised.
func New(players *mpdutils.MultiHostClient) Model {
	ctx, cancel := context.WithCancel(context.Background())

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	return Model{
		players: players,
		ctx:     ctx,
		cancel:  cancel,
		keys:    DefaultKeyMap(),
		spinner: sp,
	}
}

// Init waits for a first connection and starts the event pump.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForConnection(), m.nextEvent())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.connected {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connectedMsg:
		m.connected = true
		return m, tea.Batch(m.refresh(), m.tick())

	case eventMsg:
		cmds := []tea.Cmd{m.nextEvent()}
		if affectsPlayer(msg.ev.Event.Subsystem) {
			cmds = append(cmds, m.refresh())
		}
		return m, tea.Batch(cmds...)

	case playerMsg:
		m.host = msg.host
		m.status = msg.status
		m.song = msg.song
		m.err = nil
		return m, nil

	case playerErrMsg:
		m.err = msg.err
		return m, nil

	case tickMsg:
		if m.connected && m.status.State == mpd.StatePlay {
			m.status.Elapsed += time.Second
			if m.status.Duration > 0 && m.status.Elapsed > m.status.Duration {
				m.status.Elapsed = m.status.Duration
			}
		}
		return m, m.tick()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.TogglePause):
		var cmd mpd.Command
		switch m.status.State {
		case mpd.StatePlay:
			cmd = mpd.Cmd("pause", "1")
		case mpd.StatePause:
			cmd = mpd.Cmd("pause", "0")
		default:
			cmd = mpd.Cmd("play")
		}
		return m, m.sendCommand(cmd)

	case key.Matches(msg, m.keys.Next):
		return m, m.sendCommand(mpd.Cmd("next"))

	case key.Matches(msg, m.keys.Prev):
		return m, m.sendCommand(mpd.Cmd("previous"))
	}

	return m, nil
}

func affectsPlayer(s mpd.Subsystem) bool {
	switch s {
	case mpd.SubsystemPlayer, mpd.SubsystemMixer, mpd.SubsystemPlaylist, mpd.SubsystemOptions:
		return true
	}
	return false
}

// waitForConnection resolves once any host connects.
func (m Model) waitForConnection() tea.Cmd {
	return func() tea.Msg {
		if _, err := m.players.WaitForAnyClient(m.ctx); err != nil {
			return nil
		}
		return connectedMsg{}
	}
}

// refresh queries the current best host for its status and song.
func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, queryTimeout)
		defer cancel()

		c, err := m.players.CurrentClient(ctx)
		if err != nil {
			return playerErrMsg{err: err}
		}
		status, err := c.Status(ctx)
		if err != nil {
			return playerErrMsg{err: err}
		}
		song, err := c.CurrentSong(ctx)
		if err != nil {
			return playerErrMsg{err: err}
		}
		return playerMsg{host: c.Host(), status: status, song: song}
	}
}

// nextEvent delivers the next merged event.
func (m Model) nextEvent() tea.Cmd {
	return func() tea.Msg {
		ev, err := m.players.Recv(m.ctx)
		if err != nil {
			return nil
		}
		return eventMsg{ev: ev}
	}
}

// sendCommand runs one control command on the current best host. The
// resulting player event triggers the refresh.
func (m Model) sendCommand(cmd mpd.Command) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, queryTimeout)
		defer cancel()

		err := m.players.WithClient(ctx, func(ctx context.Context, c *mpd.Client) error {
			_, err := c.Execute(ctx, cmd)
			return err
		})
		if err != nil {
			return playerErrMsg{err: err}
		}
		return nil
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
