// Package config loads the bot's settings from the environment, reading an
// optional .env file first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN"`

	StorageDriver    string        `env:"STORAGE_DRIVER" envDefault:"json"`
	StoragePath      string        `env:"STORAGE_PATH" envDefault:"datastore.json"`
	AutosaveInterval time.Duration `env:"AUTOSAVE_INTERVAL" envDefault:"10s"`

	// DevMode makes every trigger with a non-zero chance fire.
	DevMode           bool          `env:"DEV_MODE"`
	DefaultSimulation bool          `env:"DEFAULT_SIMULATION"`
	MoodInterval      time.Duration `env:"MOOD_INTERVAL" envDefault:"1h"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile   string `env:"LOG_FILE"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"true"`

	GuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
}

// New reads .env if present, then parses the environment. Variables already
// set in the environment win over .env.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	if c.StorageDriver != DriverJSON && c.StorageDriver != DriverSQLite {
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverJSON, DriverSQLite, c.StorageDriver)
	}
	if c.StoragePath == "" {
		return errors.New("STORAGE_PATH is empty")
	}
	if c.MoodInterval <= 0 {
		return fmt.Errorf("MOOD_INTERVAL must be positive, got %s", c.MoodInterval)
	}
	if c.AutosaveInterval < 0 {
		return fmt.Errorf("AUTOSAVE_INTERVAL must not be negative, got %s", c.AutosaveInterval)
	}

	ids := c.GuildBlacklist[:0]
	for _, id := range c.GuildBlacklist {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	c.GuildBlacklist = ids
	return nil
}

// RequireToken fails when no bot token is configured.
func (c *Config) RequireToken() error {
	if c.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN is not set")
	}
	return nil
}

func (c *Config) IsBlacklisted(guildID string) bool {
	return slices.Contains(c.GuildBlacklist, guildID)
}
