// Package sqlite is the SQLite backend for pet and settings state.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/keshon/server-cat/internal/pet"
	"github.com/keshon/server-cat/internal/settings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements pet.Repository and settings.Source.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database file at path and runs pending
// migrations. Pass ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// One connection: no "database is locked", and :memory: stays one database.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode=WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Pets ---

// Timestamps are stored as unix nanoseconds in UTC.

func (s *Store) FindPet(ctx context.Context, guildID string) (*pet.Record, error) {
	var (
		rec  = pet.Record{GuildID: guildID}
		nano int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT hunger, last_update FROM pets WHERE guild_id = ?`, guildID,
	).Scan(&rec.Hunger, &nano)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pet.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find pet %s: %w", guildID, err)
	}
	rec.LastUpdate = time.Unix(0, nano).UTC()
	return &rec, nil
}

func (s *Store) SavePet(ctx context.Context, rec *pet.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pets (guild_id, hunger, last_update) VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET hunger = excluded.hunger, last_update = excluded.last_update`,
		rec.GuildID, rec.Hunger, rec.LastUpdate.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save pet %s: %w", rec.GuildID, err)
	}
	return nil
}

// --- Settings ---

func (s *Store) LoadSettings(ctx context.Context, guildID string) (*settings.Settings, error) {
	st := settings.Settings{GuildID: guildID}
	err := s.db.QueryRowContext(ctx,
		`SELECT simulation, integration FROM guild_settings WHERE guild_id = ?`, guildID,
	).Scan(&st.Simulation, &st.Integration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, settings.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load settings %s: %w", guildID, err)
	}
	return &st, nil
}

func (s *Store) SaveSettings(ctx context.Context, st *settings.Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, simulation, integration) VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET simulation = excluded.simulation, integration = excluded.integration`,
		st.GuildID, st.Simulation, st.Integration,
	)
	if err != nil {
		return fmt.Errorf("save settings %s: %w", st.GuildID, err)
	}
	return nil
}

// Guilds lists every guild with a pet or settings row.
func (s *Store) Guilds(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guild_id FROM pets UNION SELECT guild_id FROM guild_settings ORDER BY guild_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
