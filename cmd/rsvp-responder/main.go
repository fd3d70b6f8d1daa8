package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"nuru-rsvp/internal/config"
	"nuru-rsvp/internal/events"
	"nuru-rsvp/internal/handler"
	"nuru-rsvp/internal/server"
	"nuru-rsvp/internal/storage"
	"nuru-rsvp/internal/whatsapp"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := newLogger(cfg)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	var dedup storage.DedupStore
	if cfg.DedupDBPath != "" {
		sqliteDedup, err := storage.NewSQLiteDedup(cfg.DedupDBPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to open dedup store")
		}
		defer sqliteDedup.Close()
		dedup = sqliteDedup
	} else {
		logger.Warn().Msg("No DEDUP_DB_PATH configured, webhook redeliveries will be reprocessed")
	}

	sender := whatsapp.NewService(&whatsapp.Config{
		AccessToken:   cfg.WhatsAppAccessToken,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		BaseURL:       cfg.WhatsAppAPIBaseURL,
	}, logger)

	eventsClient := events.NewClient(cfg.EventsAPIBaseURL, logger)
	responder := handler.NewResponder(sender, eventsClient, logger)
	srv := server.New(cfg, responder, sender, dedup, logger)

	httpServer := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: srv.Engine(),
	}

	go func() {
		logger.Info().Str("port", cfg.AppPort).Msg("RSVP responder listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Shutdown did not complete cleanly")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out zerolog.Logger
	if cfg.IsProduction() {
		out = zerolog.New(os.Stdout)
	} else {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return out.Level(level).With().Timestamp().Logger()
}
