// Package storage keeps the bot's per-guild state in the JSON datastore, one
// record per guild.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/keshon/server-cat/datastore"
	"github.com/keshon/server-cat/internal/pet"
	"github.com/keshon/server-cat/internal/settings"

	"github.com/rs/zerolog"
)

const guildKeyPrefix = "guild:"

// Storage implements pet.Repository and settings.Source over a datastore.
type Storage struct {
	ds *datastore.DataStore

	// mu serializes read-modify-write of a guild record, which holds both the
	// pet and the settings.
	mu sync.Mutex
}

type PetState struct {
	Hunger     int       `json:"hunger"`
	LastUpdate time.Time `json:"last_update"`
}

type SettingsState struct {
	Simulation  bool `json:"simulation"`
	Integration bool `json:"integration"`
}

// Record is everything stored for one guild. A nil section has not been
// created yet.
type Record struct {
	Pet      *PetState      `json:"pet,omitempty"`
	Settings *SettingsState `json:"settings,omitempty"`
}

// Options configure New.
type Options struct {
	AutoSaveInterval time.Duration
	BackupCount      int
	Logger           zerolog.Logger
}

func New(filePath string, opts Options) (*Storage, error) {
	cfg := datastore.DefaultConfig(filePath)
	cfg.AutoSaveInterval = opts.AutoSaveInterval
	cfg.BackupCount = opts.BackupCount
	cfg.Logger = opts.Logger

	ds, err := datastore.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

func guildKey(guildID string) string {
	return guildKeyPrefix + guildID
}

func (s *Storage) getGuildRecord(guildID string) (*Record, error) {
	var rec Record
	if _, err := s.ds.Get(guildKey(guildID), &rec); err != nil {
		return nil, fmt.Errorf("read guild %s: %w", guildID, err)
	}
	return &rec, nil
}

func (s *Storage) updateGuildRecord(guildID string, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getGuildRecord(guildID)
	if err != nil {
		return err
	}
	fn(rec)
	if err := s.ds.Put(guildKey(guildID), rec); err != nil {
		return fmt.Errorf("write guild %s: %w", guildID, err)
	}
	return nil
}

// FindPet returns pet.ErrNotFound for guilds without a cat.
func (s *Storage) FindPet(_ context.Context, guildID string) (*pet.Record, error) {
	rec, err := s.getGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	if rec.Pet == nil {
		return nil, pet.ErrNotFound
	}
	return &pet.Record{GuildID: guildID, Hunger: rec.Pet.Hunger, LastUpdate: rec.Pet.LastUpdate}, nil
}

func (s *Storage) SavePet(_ context.Context, p *pet.Record) error {
	return s.updateGuildRecord(p.GuildID, func(rec *Record) {
		rec.Pet = &PetState{Hunger: p.Hunger, LastUpdate: p.LastUpdate}
	})
}

// LoadSettings returns settings.ErrNotFound for guilds never seen.
func (s *Storage) LoadSettings(_ context.Context, guildID string) (*settings.Settings, error) {
	rec, err := s.getGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	if rec.Settings == nil {
		return nil, settings.ErrNotFound
	}
	return &settings.Settings{
		GuildID:     guildID,
		Simulation:  rec.Settings.Simulation,
		Integration: rec.Settings.Integration,
	}, nil
}

func (s *Storage) SaveSettings(_ context.Context, st *settings.Settings) error {
	return s.updateGuildRecord(st.GuildID, func(rec *Record) {
		rec.Settings = &SettingsState{Simulation: st.Simulation, Integration: st.Integration}
	})
}

// Guilds lists every guild with a stored record.
func (s *Storage) Guilds(context.Context) ([]string, error) {
	keys, err := s.ds.Keys(guildKeyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k[len(guildKeyPrefix):]
	}
	return out, nil
}
