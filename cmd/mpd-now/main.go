package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	mpdutils "github.com/JakeStanger/go-mpd-utils"
	"github.com/JakeStanger/go-mpd-utils/internal/tui"
)

func main() {
	hostsFlag := flag.String("hosts", mpdutils.DefaultHost, "Comma-separated MPD hosts (address:port or socket path), in priority order")
	retry := flag.Duration("retry", mpdutils.DefaultRetryInterval, "Reconnect interval")
	logPath := flag.String("log", "", "Write debug logs to this file")
	flag.Parse()

	var hosts []string
	for _, h := range strings.Split(*hostsFlag, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no hosts given")
		os.Exit(1)
	}

	opts := []mpdutils.Option{}
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		opts = append(opts, mpdutils.WithLogger(zerolog.New(f).With().Timestamp().Logger()))
	}

	players := mpdutils.NewMultiHost(hosts, *retry, opts...)
	players.Init()

	p := tea.NewProgram(tui.New(players), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
