package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/keshon/server-cat/internal/pet"
	"github.com/keshon/server-cat/internal/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.db")

	s1, err := Open(path)
	require.NoError(t, err)
	v1, err := s1.AppliedMigrations()
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	v2, err := s2.AppliedMigrations()
	require.NoError(t, err)

	assert.Equal(t, []int{1}, v1)
	assert.Equal(t, v1, v2)
}

func TestUnknownGuildIsNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.FindPet(ctx, "G1")
	assert.ErrorIs(t, err, pet.ErrNotFound)
	_, err = s.LoadSettings(ctx, "G1")
	assert.ErrorIs(t, err, settings.ErrNotFound)
}

func TestPetUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 123, time.UTC)

	require.NoError(t, s.SavePet(ctx, &pet.Record{GuildID: "G1", Hunger: 10, LastUpdate: at}))
	require.NoError(t, s.SavePet(ctx, &pet.Record{GuildID: "G1", Hunger: 6, LastUpdate: at.Add(4 * time.Hour)}))

	got, err := s.FindPet(ctx, "G1")
	require.NoError(t, err)
	assert.Equal(t, 6, got.Hunger)
	assert.True(t, at.Add(4*time.Hour).Equal(got.LastUpdate))
}

func TestSettingsUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSettings(ctx, &settings.Settings{GuildID: "G1", Simulation: true}))
	require.NoError(t, s.SaveSettings(ctx, &settings.Settings{GuildID: "G1", Simulation: true, Integration: true}))

	got, err := s.LoadSettings(ctx, "G1")
	require.NoError(t, err)
	assert.Equal(t, settings.Settings{GuildID: "G1", Simulation: true, Integration: true}, *got)
}

func TestGuilds(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePet(ctx, &pet.Record{GuildID: "B", Hunger: 1, LastUpdate: time.Now()}))
	require.NoError(t, s.SaveSettings(ctx, &settings.Settings{GuildID: "A"}))
	require.NoError(t, s.SaveSettings(ctx, &settings.Settings{GuildID: "B"}))

	guilds, err := s.Guilds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, guilds)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SavePet(ctx, &pet.Record{GuildID: "G1", Hunger: 3, LastUpdate: time.Unix(1700000000, 0)}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.FindPet(ctx, "G1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Hunger)
	assert.Equal(t, int64(1700000000), got.LastUpdate.Unix())
}
