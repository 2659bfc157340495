// Package commands is the cat's repertoire: every handler the bot registers,
// with its pattern, its category and the replies it sends.
package commands

import (
	"hash/fnv"
	"time"

	"github.com/keshon/server-cat/internal/dice"
	"github.com/keshon/server-cat/internal/handler"
)

// DefaultAwaitTimeout is how long an exchange waits for the user's answer.
const DefaultAwaitTimeout = 30 * time.Second

// Env is shared by all handlers.
type Env struct {
	Replies *Replies
	Die     dice.Die
	// Now feeds the users' daily standing with the cat.
	Now          func() time.Time
	AwaitTimeout time.Duration
}

func (e Env) withDefaults() Env {
	if e.Replies == nil {
		e.Replies = DefaultReplies()
	}
	if e.Die == nil {
		e.Die = dice.NewRandom()
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.AwaitTimeout <= 0 {
		e.AwaitTimeout = DefaultAwaitTimeout
	}
	return e
}

// Handlers returns the full handler table in registration order. Within a
// category, earlier handlers win.
func Handlers(env Env) []*handler.Handler {
	env = env.withDefaults()
	return []*handler.Handler{
		toggleSimulation(env),
		toggleIntegration(env),
		settingsReport(env),
		mood(env),

		twitter(env),

		hungry(env),
		feed(env),
		guessingGame(env),
		petCat(env),
		meow(env),

		meowBack(env),
		laser(env),
		treats(env),

		specialPetCat(env),
	}
}

// Registry builds the registry over Handlers.
func Registry(env Env) (*handler.Registry, error) {
	return handler.NewRegistry(Handlers(env)...)
}

// UserMood is a user's standing with the cat, 0..9. It is stable for a user
// over a calendar day (UTC) and reshuffles the next.
func UserMood(userID string, at time.Time) int {
	h := fnv.New32a()
	h.Write([]byte(userID))
	h.Write([]byte(at.UTC().Format(time.DateOnly)))
	return int(h.Sum32() % 10)
}
