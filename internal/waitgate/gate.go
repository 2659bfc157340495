// Package waitgate tracks guilds where a multi-step exchange is waiting on a
// reply, so spontaneous triggers stay quiet until it finishes.
package waitgate

import "sync"

// Gate holds a paused flag per guild. The zero value is not usable; call New.
type Gate struct {
	mu     sync.Mutex
	paused map[string]bool
}

func New() *Gate {
	return &Gate{paused: make(map[string]bool)}
}

// Pause marks the guild as waiting.
func (g *Gate) Pause(guildID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused[guildID] = true
}

// Resume clears the guild's flag.
func (g *Gate) Resume(guildID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.paused, guildID)
}

// IsPaused reports whether the guild is waiting. Unknown guilds are not.
func (g *Gate) IsPaused(guildID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused[guildID]
}

// Hold pauses the guild and returns the matching Resume, meant for defer.
func (g *Gate) Hold(guildID string) (release func()) {
	g.Pause(guildID)
	return g.releaser(guildID)
}

// TryHold pauses the guild only if nobody else holds it. Check and pause are
// one step, so of two exchanges racing for a guild exactly one gets ok.
func (g *Gate) TryHold(guildID string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused[guildID] {
		return func() {}, false
	}
	g.paused[guildID] = true
	return g.releaser(guildID), true
}

func (g *Gate) releaser(guildID string) func() {
	var once sync.Once
	return func() { once.Do(func() { g.Resume(guildID) }) }
}
