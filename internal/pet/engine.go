package pet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Cat is a guild's cat: the guild's hunger plus the global mood.
type Cat struct {
	*Mood
	Record
}

// HungerReaction reports whether the cat says it is hungry.
func (c *Cat) HungerReaction() HungerClass {
	if c.Hunger <= HungryAt {
		return Hungry
	}
	return NotHungry
}

// Engine owns the global mood and every guild's hunger. Access to one guild's
// record is serialized, so concurrent messages never decay the same hours twice.
type Engine struct {
	mood  *Mood
	repo  Repository
	clock Clock
	log   zerolog.Logger

	mu sync.Mutex
	// locks holds one mutex per guild ever seen and is never pruned; it is
	// bounded by the number of guilds the bot is in.
	locks map[string]*sync.Mutex
}

// NewEngine creates an Engine. A nil clock means the wall clock.
func NewEngine(mood *Mood, repo Repository, clock Clock, log zerolog.Logger) *Engine {
	if clock == nil {
		clock = RealClock()
	}
	return &Engine{
		mood:  mood,
		repo:  repo,
		clock: clock,
		log:   log.With().Str("component", "pet").Logger(),
		locks: make(map[string]*sync.Mutex),
	}
}

// Mood returns the process-wide mood.
func (e *Engine) Mood() *Mood {
	return e.mood
}

func (e *Engine) guildLock(guildID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[guildID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[guildID] = l
	}
	return l
}

// Cat loads the guild's cat, creating it full on first sight, and applies
// hunger decay before returning it.
func (e *Engine) Cat(ctx context.Context, guildID string) (*Cat, error) {
	l := e.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	rec, err := e.load(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return &Cat{Mood: e.mood, Record: *rec}, nil
}

// Feed fills the cat up if it is hungry enough to eat.
func (e *Engine) Feed(ctx context.Context, guildID string) (FeedResult, *Cat, error) {
	l := e.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	rec, err := e.load(ctx, guildID)
	if err != nil {
		return "", nil, err
	}
	if rec.Hunger >= FeedBelow {
		return RefusedFood, &Cat{Mood: e.mood, Record: *rec}, nil
	}

	before := rec.Hunger
	rec.Hunger = MaxHunger
	// LastUpdate never moves back, even when the clock does.
	if now := e.clock.Now(); now.After(rec.LastUpdate) {
		rec.LastUpdate = now
	}
	if err := e.repo.SavePet(ctx, rec); err != nil {
		return "", nil, fmt.Errorf("save fed cat for guild %s: %w", guildID, err)
	}
	e.log.Debug().Str("guild_id", guildID).Int("from", before).Msg("cat fed")
	return Fed, &Cat{Mood: e.mood, Record: *rec}, nil
}

// load must be called with the guild lock held.
func (e *Engine) load(ctx context.Context, guildID string) (*Record, error) {
	rec, err := e.repo.FindPet(ctx, guildID)
	switch {
	case errors.Is(err, ErrNotFound):
		rec = &Record{GuildID: guildID, Hunger: MaxHunger, LastUpdate: e.clock.Now()}
		if err := e.repo.SavePet(ctx, rec); err != nil {
			return nil, fmt.Errorf("create cat for guild %s: %w", guildID, err)
		}
		e.log.Info().Str("guild_id", guildID).Msg("new cat adopted")
		return rec, nil
	case err != nil:
		return nil, fmt.Errorf("load cat for guild %s: %w", guildID, err)
	}

	rec.Hunger = min(max(rec.Hunger, 0), MaxHunger)
	if Decay(rec, e.clock.Now()) {
		if err := e.repo.SavePet(ctx, rec); err != nil {
			return nil, fmt.Errorf("save decayed cat for guild %s: %w", guildID, err)
		}
		e.log.Debug().Str("guild_id", guildID).Int("hunger", rec.Hunger).Msg("hunger decayed")
	}
	return rec, nil
}
