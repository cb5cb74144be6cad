package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/JakeStanger/go-mpd-utils/mpd"
)

var (
	colorAccent = lipgloss.Color("6")
	colorDimmed = lipgloss.Color("8")
	colorDanger = lipgloss.Color("1")

	titleStyle  = lipgloss.NewStyle().Bold(true)
	artistStyle = lipgloss.NewStyle().Foreground(colorAccent)
	dimmedStyle = lipgloss.NewStyle().Foreground(colorDimmed)
	errStyle    = lipgloss.NewStyle().Foreground(colorDanger)

	frameStyle = lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorDimmed)
)

// View renders the now-playing screen.
func (m Model) View() string {
	width := m.width
	if width < 40 {
		width = 40
	}
	inner := width - 8

	if !m.connected {
		return frameStyle.Render(m.spinner.View() + " Connecting to MPD...")
	}

	var lines []string

	lines = append(lines, stateLine(m.status.State))

	if m.song != nil {
		title := m.song.Title
		if title == "" {
			title = m.song.URI
		}
		lines = append(lines, titleStyle.Render(truncate(title, inner)))
		if m.song.Artist != "" {
			lines = append(lines, artistStyle.Render(truncate(m.song.Artist, inner)))
		}
		if m.song.Album != "" {
			lines = append(lines, dimmedStyle.Render(truncate(m.song.Album, inner)))
		}
	} else {
		lines = append(lines, dimmedStyle.Render("Nothing queued"))
	}

	lines = append(lines, "")
	lines = append(lines, progressLine(inner, m.status.Elapsed, m.status.Duration))

	info := fmt.Sprintf("vol %d%%", m.status.Volume)
	if m.status.Volume < 0 {
		info = "vol n/a"
	}
	if m.host != "" {
		info += dimmedStyle.Render("  ·  " + m.host)
	}
	lines = append(lines, info)

	if m.err != nil {
		lines = append(lines, "")
		lines = append(lines, errStyle.Render(truncate(m.err.Error(), inner)))
	}

	lines = append(lines, "")
	lines = append(lines, dimmedStyle.Render("p play/pause · n next · b previous · q quit"))

	return frameStyle.Width(width - 4).Render(strings.Join(lines, "\n"))
}

func stateLine(state mpd.PlayState) string {
	switch state {
	case mpd.StatePlay:
		return artistStyle.Render("▶ Playing")
	case mpd.StatePause:
		return dimmedStyle.Render("❚❚ Paused")
	default:
		return dimmedStyle.Render("■ Stopped")
	}
}

func progressLine(width int, elapsed, duration time.Duration) string {
	label := fmt.Sprintf("%s / %s", formatDuration(elapsed), formatDuration(duration))

	barWidth := width - len(label) - 2
	if barWidth < 10 {
		return label
	}

	filled := 0
	if duration > 0 {
		filled = int(float64(barWidth) * float64(elapsed) / float64(duration))
		if filled > barWidth {
			filled = barWidth
		}
	}

	bar := artistStyle.Render(strings.Repeat("━", filled)) +
		dimmedStyle.Render(strings.Repeat("─", barWidth-filled))
	return bar + "  " + label
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	if total >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", total/3600, total/60%60, total%60)
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func truncate(s string, max int) string {
	if max <= 1 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
