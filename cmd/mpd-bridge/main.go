package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	mpdutils "github.com/JakeStanger/go-mpd-utils"
	"github.com/JakeStanger/go-mpd-utils/internal/bridge"
	"github.com/JakeStanger/go-mpd-utils/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	log = log.Level(level)

	players := mpdutils.NewMultiHost(cfg.Hosts, time.Duration(cfg.RetryInterval), mpdutils.WithLogger(log))
	players.Init()

	hub := bridge.NewHub(log)
	b := bridge.New(players, hub, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := b.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("event pump stopped")
		}
	}()

	mux := http.NewServeMux()
	server := bridge.NewServer(b, players, hub, cfg.Server.AllowedOrigins, log)
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down")
		cancel()
		os.Exit(0)
	}()

	if err := bridge.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux, log); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
