package pet

import (
	"context"
	"errors"
	"time"
)

const (
	// MaxHunger is a full cat. Hunger counts down towards 0.
	MaxHunger = 10
	// HungryAt is the level at or below which the cat says it is hungry.
	HungryAt = 4
	// FeedBelow is the level the cat must be under to accept food.
	FeedBelow = 4
)

// ErrNotFound is returned by a Repository that has no record for a guild.
var ErrNotFound = errors.New("pet record not found")

// HungerClass is the cat's answer to "are you hungry?".
type HungerClass string

const (
	Hungry    HungerClass = "hungry"
	NotHungry HungerClass = "not_hungry"
)

// FeedResult is the outcome of a feeding attempt.
type FeedResult string

const (
	Fed         FeedResult = "fed"
	RefusedFood FeedResult = "not_hungry"
)

// Record is the persisted per-guild pet state.
type Record struct {
	GuildID    string    `json:"guild_id"`
	Hunger     int       `json:"hunger"`
	LastUpdate time.Time `json:"last_update"`
}

// Repository persists pet records keyed by guild ID.
type Repository interface {
	// FindPet returns ErrNotFound when the guild has no record yet.
	FindPet(ctx context.Context, guildID string) (*Record, error)
	SavePet(ctx context.Context, rec *Record) error
}

// Decay applies one hunger point per whole hour since LastUpdate. It reports
// whether the record changed. Zero or negative elapsed hours leave it untouched.
func Decay(rec *Record, now time.Time) bool {
	hours := int(now.Sub(rec.LastUpdate) / time.Hour)
	if hours <= 0 {
		return false
	}
	rec.Hunger = max(0, rec.Hunger-hours)
	rec.LastUpdate = now
	return true
}

// Clock supplies the current time. Tests swap in a fake.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }
