package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/keshon/server-cat/internal/dice"
	"github.com/keshon/server-cat/internal/pet"
	"github.com/keshon/server-cat/internal/settings"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T, path string) *Storage {
	t.Helper()
	s, err := New(path, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	return s
}

func TestUnknownGuildIsNotFound(t *testing.T) {
	s := newStorage(t, filepath.Join(t.TempDir(), "db.json"))
	defer s.Close()
	ctx := context.Background()

	_, err := s.FindPet(ctx, "G1")
	assert.ErrorIs(t, err, pet.ErrNotFound)
	_, err = s.LoadSettings(ctx, "G1")
	assert.ErrorIs(t, err, settings.ErrNotFound)
}

func TestPetAndSettingsShareARecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	s := newStorage(t, path)
	require.NoError(t, s.SavePet(ctx, &pet.Record{GuildID: "G1", Hunger: 7, LastUpdate: at}))
	require.NoError(t, s.SaveSettings(ctx, &settings.Settings{GuildID: "G1", Simulation: true}))

	// Saving settings keeps the pet.
	p, err := s.FindPet(ctx, "G1")
	require.NoError(t, err)
	assert.Equal(t, 7, p.Hunger)
	require.NoError(t, s.Close())

	s = newStorage(t, path)
	defer s.Close()

	p, err = s.FindPet(ctx, "G1")
	require.NoError(t, err)
	assert.Equal(t, "G1", p.GuildID)
	assert.Equal(t, 7, p.Hunger)
	assert.True(t, at.Equal(p.LastUpdate))

	st, err := s.LoadSettings(ctx, "G1")
	require.NoError(t, err)
	assert.Equal(t, settings.Settings{GuildID: "G1", Simulation: true}, *st)

	guilds, err := s.Guilds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"G1"}, guilds)
}

func TestServesPetEngineAndSettingsStore(t *testing.T) {
	s := newStorage(t, filepath.Join(t.TempDir(), "db.json"))
	defer s.Close()
	ctx := context.Background()

	engine := pet.NewEngine(pet.NewMood(dice.Fixed(1)), s, nil, zerolog.Nop())
	cat, err := engine.Cat(ctx, "G9")
	require.NoError(t, err)
	assert.Equal(t, pet.MaxHunger, cat.Hunger)

	store := settings.NewStore(s, settings.Defaults{Simulation: true}, zerolog.Nop())
	got, err := store.Get(ctx, "G9")
	require.NoError(t, err)
	assert.True(t, got.Simulation)

	persisted, err := s.LoadSettings(ctx, "G9")
	require.NoError(t, err)
	assert.True(t, persisted.Simulation)
}
