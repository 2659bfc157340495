// Package settings caches per-guild feature flags. A guild's record is created
// with defaults on first access and kept for the life of the process.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned by a Source with no record for the guild.
var ErrNotFound = errors.New("guild settings not found")

// Settings are the feature flags of one guild.
type Settings struct {
	GuildID     string `json:"guild_id"`
	Simulation  bool   `json:"simulation"`
	Integration bool   `json:"integration"`
}

// Source persists settings. LoadSettings returns ErrNotFound for new guilds.
type Source interface {
	LoadSettings(ctx context.Context, guildID string) (*Settings, error)
	SaveSettings(ctx context.Context, s *Settings) error
}

// Defaults are applied to guilds seen for the first time.
type Defaults struct {
	Simulation  bool
	Integration bool
}

// Store is a get-or-create cache in front of a Source. Safe for concurrent use.
type Store struct {
	src      Source
	defaults Defaults
	log      zerolog.Logger

	mu    sync.RWMutex
	cache map[string]*Settings
	group singleflight.Group
}

// NewStore creates a Store. A nil src keeps settings in memory only.
func NewStore(src Source, defaults Defaults, log zerolog.Logger) *Store {
	return &Store{
		src:      src,
		defaults: defaults,
		log:      log.With().Str("component", "settings").Logger(),
		cache:    make(map[string]*Settings),
	}
}

// Get returns a copy of the guild's settings, loading or creating them on a miss.
func (s *Store) Get(ctx context.Context, guildID string) (Settings, error) {
	s.mu.RLock()
	cached, ok := s.cache[guildID]
	if ok {
		out := *cached
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.group.Do(guildID, func() (any, error) {
		return s.fill(ctx, guildID)
	})
	if err != nil {
		return Settings{}, err
	}
	return v.(Settings), nil
}

// Update applies fn to the guild's settings, persists and caches the result.
func (s *Store) Update(ctx context.Context, guildID string, fn func(*Settings)) (Settings, error) {
	if _, err := s.Get(ctx, guildID); err != nil {
		return Settings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.cache[guildID]
	fn(&next)
	next.GuildID = guildID
	if s.src != nil {
		if err := s.src.SaveSettings(ctx, &next); err != nil {
			return Settings{}, fmt.Errorf("save settings for guild %s: %w", guildID, err)
		}
	}
	s.cache[guildID] = &next
	s.log.Info().Str("guild_id", guildID).
		Bool("simulation", next.Simulation).
		Bool("integration", next.Integration).
		Msg("settings updated")
	return next, nil
}

func (s *Store) fill(ctx context.Context, guildID string) (Settings, error) {
	s.mu.RLock()
	if cached, ok := s.cache[guildID]; ok {
		out := *cached
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	loaded, err := s.load(ctx, guildID)
	if err != nil {
		return Settings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[guildID]; ok {
		return *cached, nil
	}
	s.cache[guildID] = loaded
	return *loaded, nil
}

func (s *Store) load(ctx context.Context, guildID string) (*Settings, error) {
	fresh := &Settings{
		GuildID:     guildID,
		Simulation:  s.defaults.Simulation,
		Integration: s.defaults.Integration,
	}
	if s.src == nil {
		return fresh, nil
	}

	got, err := s.src.LoadSettings(ctx, guildID)
	switch {
	case err == nil:
		got.GuildID = guildID
		return got, nil
	case errors.Is(err, ErrNotFound):
		if err := s.src.SaveSettings(ctx, fresh); err != nil {
			return nil, fmt.Errorf("create settings for guild %s: %w", guildID, err)
		}
		s.log.Debug().Str("guild_id", guildID).Msg("settings created with defaults")
		return fresh, nil
	default:
		return nil, fmt.Errorf("load settings for guild %s: %w", guildID, err)
	}
}
