// cmd/discord/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/server-cat/internal/app"
	"github.com/keshon/server-cat/internal/config"
	"github.com/keshon/server-cat/internal/discord"
	"github.com/keshon/server-cat/internal/logging"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("discord bot exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	if err := cfg.RequireToken(); err != nil {
		return err
	}

	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		File:   cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Msg("starting cat bot")

	cat, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := cat.Close(); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	if _, err := cat.Warm(ctx); err != nil {
		logger.Warn().Err(err).Msg("settings warm-up failed")
	}
	if err := cat.StartMoodClock(); err != nil {
		return err
	}

	bot, err := discord.New(cfg.DiscordToken, cat.Pipeline, discord.Options{Blacklisted: cfg.IsBlacklisted}, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- bot.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("received signal, shutting down")
		if err := <-errCh; err != nil {
			return err
		}
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info().Msg("discord bot exited cleanly")
	return nil
}
