// Package app assembles the bot from its configuration: storage backend, pet
// engine, settings, handler table and dispatch pipeline, plus the background
// mood clock.
package app

import (
	"context"
	"fmt"

	"github.com/keshon/server-cat/internal/commands"
	"github.com/keshon/server-cat/internal/config"
	"github.com/keshon/server-cat/internal/dice"
	"github.com/keshon/server-cat/internal/dispatch"
	"github.com/keshon/server-cat/internal/pet"
	"github.com/keshon/server-cat/internal/settings"
	"github.com/keshon/server-cat/internal/storage"
	"github.com/keshon/server-cat/internal/storage/sqlite"
	"github.com/keshon/server-cat/internal/waitgate"
	"github.com/keshon/server-cat/pkg/jobmgr"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	moodJob = "mood-clock"

	warmWorkers = 4
)

// Backend is a storage driver.
type Backend interface {
	pet.Repository
	settings.Source
	Guilds(ctx context.Context) ([]string, error)
	Close() error
}

// Options override pieces that default to real randomness and the wall clock.
type Options struct {
	Die   dice.Die
	Clock pet.Clock
}

type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Store    Backend
	Settings *settings.Store
	Pet      *pet.Engine
	Gate     *waitgate.Gate
	Pipeline *dispatch.Pipeline
	Jobs     *jobmgr.Manager
}

// New wires everything but starts nothing. Jobs are cancelled when ctx is.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*App, error) {
	store, err := OpenBackend(cfg, log)
	if err != nil {
		return nil, err
	}

	die := opts.Die
	if die == nil {
		die = dice.NewRandom()
	}
	clock := opts.Clock
	if clock == nil {
		clock = pet.RealClock()
	}

	reg, err := commands.Registry(commands.Env{Die: die, Now: clock.Now})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build handler table: %w", err)
	}

	engine := pet.NewEngine(pet.NewMood(die), store, clock, log)
	st := settings.NewStore(store, settings.Defaults{Simulation: cfg.DefaultSimulation}, log)
	gate := waitgate.New()

	pipeline := dispatch.New(dispatch.Config{DevMode: cfg.DevMode, Die: die}, reg, st, engine, gate, log)

	log.Info().
		Str("storage", cfg.StorageDriver).
		Str("path", cfg.StoragePath).
		Bool("dev_mode", cfg.DevMode).
		Bool("default_simulation", cfg.DefaultSimulation).
		Int("handlers", reg.Len()).
		Int("mood", engine.Mood().Value()).
		Msg("cat assembled")

	return &App{
		Config:   cfg,
		Log:      log,
		Store:    store,
		Settings: st,
		Pet:      engine,
		Gate:     gate,
		Pipeline: pipeline,
		Jobs:     jobmgr.NewManager(ctx, log),
	}, nil
}

// OpenBackend opens the storage driver named by the configuration.
func OpenBackend(cfg *config.Config, log zerolog.Logger) (Backend, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.StoragePath, err)
		}
		return s, nil
	case config.DriverJSON, "":
		s, err := storage.New(cfg.StoragePath, storage.Options{
			AutoSaveInterval: cfg.AutosaveInterval,
			BackupCount:      3,
			Logger:           log,
		})
		if err != nil {
			return nil, fmt.Errorf("open datastore %s: %w", cfg.StoragePath, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// StartMoodClock regenerates the mood every MOOD_INTERVAL in the background.
func (a *App) StartMoodClock() error {
	return a.Jobs.StartAsync(moodJob, func(ctx context.Context) error {
		return a.Pet.Mood().Run(ctx, a.Config.MoodInterval, a.Log.With().Str("component", "mood").Logger())
	})
}

// Warm loads the settings of every stored guild into the cache, a few guilds
// at a time. It returns the number of guilds loaded.
func (a *App) Warm(ctx context.Context) (int, error) {
	guilds, err := a.Store.Guilds(ctx)
	if err != nil {
		return 0, fmt.Errorf("list guilds: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(warmWorkers)
	for _, id := range guilds {
		g.Go(func() error {
			_, err := a.Settings.Get(ctx, id)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	a.Log.Debug().Int("guilds", len(guilds)).Msg("settings warmed")
	return len(guilds), nil
}

// Close stops background jobs and closes the store, flushing it to disk.
func (a *App) Close() error {
	a.Jobs.StopAll()
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	a.Log.Info().Msg("storage closed")
	return nil
}
