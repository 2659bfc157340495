package commands

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/keshon/server-cat/internal/dice"
	"github.com/keshon/server-cat/internal/handler"
	"github.com/keshon/server-cat/internal/pet"
	"github.com/keshon/server-cat/internal/settings"
	"github.com/keshon/server-cat/internal/waitgate"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memPets struct {
	mu   sync.Mutex
	recs map[string]pet.Record
}

func (m *memPets) FindPet(_ context.Context, id string) (*pet.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok {
		return nil, pet.ErrNotFound
	}
	return &r, nil
}

func (m *memPets) SavePet(_ context.Context, r *pet.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[r.GuildID] = *r
	return nil
}

// chat records what the handler said. answer, when set, is what the user
// types back to AwaitReply; onAwait runs while the handler is waiting.
type chat struct {
	sent    []string
	replied []string
	answer  string
	timeout bool
	onAwait func()
}

func (c *chat) Send(_ context.Context, s string) error {
	c.sent = append(c.sent, s)
	return nil
}

func (c *chat) Reply(_ context.Context, s string) error {
	c.replied = append(c.replied, s)
	return nil
}

func (c *chat) AwaitReply(context.Context, time.Duration) (string, error) {
	if c.onAwait != nil {
		c.onAwait()
	}
	if c.timeout {
		return "", context.DeadlineExceeded
	}
	return c.answer, nil
}

type env struct {
	Env
	clock    *fakeClock
	pets     *memPets
	engine   *pet.Engine
	settings *settings.Store
	gate     *waitgate.Gate
	reg      *handler.Registry
}

func newEnv(t *testing.T, die dice.Die) *env {
	t.Helper()
	e := &env{
		clock:    &fakeClock{now: epoch},
		pets:     &memPets{recs: map[string]pet.Record{}},
		settings: settings.NewStore(nil, settings.Defaults{}, zerolog.Nop()),
		gate:     waitgate.New(),
	}
	e.Env = Env{Die: die, Now: e.clock.Now}.withDefaults()
	e.engine = pet.NewEngine(pet.NewMood(die), e.pets, e.clock, zerolog.Nop())

	reg, err := Registry(e.Env)
	require.NoError(t, err)
	e.reg = reg
	return e
}

func (e *env) run(t *testing.T, cat handler.Category, tag, content string, c *chat) {
	t.Helper()
	h, ok := e.reg.Get(cat, tag)
	require.True(t, ok, "%s/%s not registered", cat, tag)
	require.True(t, h.Matches(content), "%s does not match %q", h, content)

	req := &handler.Request{
		Message: &handler.Message{GuildID: "G1", ChannelID: "C1", AuthorID: "U1", Content: content, Available: true},
		Reply:   c,
	}
	switch {
	case h.RequiresSettings:
		req.Settings = e.settings
	case h.UsesWaitGate:
		req.Gate = e.gate
	default:
		req.Pet = e.engine
	}
	require.NoError(t, h.Run(context.Background(), req))
}

func TestDefaultRepliesParse(t *testing.T) {
	r := DefaultReplies()
	assert.NotEmpty(t, r.Pet[pet.ReactionHappy])
	assert.NotEmpty(t, r.Game.Ask)
	assert.NotEmpty(t, r.Treats.Yes)
	assert.Contains(t, r.Twitter, "{{links}}")
}

func TestParseRepliesRequiresEveryTemplate(t *testing.T) {
	full := string(defaultReplies)
	cases := map[string]string{
		"game.busy":               `  busy: "Shh, I'm in the middle of something."`,
		"treats.timeout":          `  timeout: "*wanders off, treatless*"`,
		"settings.integration_on": `  integration_on: "Twitter integration enabled."`,
		"twitter":                 `twitter: "Here's a better embed: {{links}}"`,
	}
	for key, line := range cases {
		require.Contains(t, full, line+"\n", key)
		_, err := ParseReplies(strings.NewReader(strings.Replace(full, line+"\n", "", 1)))
		assert.ErrorContains(t, err, "replies: "+key+" is empty")
	}
}

func TestParseRepliesRejectsBadTables(t *testing.T) {
	_, err := ParseReplies(strings.NewReader("bogus: 1\n"))
	assert.Error(t, err)

	_, err = ParseReplies(strings.NewReader("pet:\n  happy: [\"purr\"]\n"))
	assert.ErrorContains(t, err, "no pet lines")
}

func TestRegistryBuilds(t *testing.T) {
	reg, err := Registry(Env{})
	require.NoError(t, err)

	_, ok := reg.Get(handler.Command, "pet_cat")
	assert.True(t, ok)
	_, ok = reg.Get(handler.Special, "pet_cat")
	assert.True(t, ok)
	assert.Len(t, reg.Lookup(handler.Trigger), 3)
}

func TestUserMood(t *testing.T) {
	a := UserMood("U1", epoch)
	assert.Equal(t, a, UserMood("U1", epoch.Add(11*time.Hour)))
	for i := range 50 {
		v := UserMood("U1", epoch.AddDate(0, 0, i))
		assert.GreaterOrEqual(t, v, 0)
		assert.LessOrEqual(t, v, 9)
	}
}

func TestFixTwitterLinks(t *testing.T) {
	links := FixTwitterLinks("a https://twitter.com/cat/status/1 b https://x.com/dog/status/22?s=20 " +
		"again https://mobile.twitter.com/cat/status/1")
	assert.Equal(t, []string{
		"https://fxtwitter.com/cat/status/1",
		"https://fxtwitter.com/dog/status/22",
	}, links)
	assert.Empty(t, FixTwitterLinks("https://twitter.com/cat"))
}

func TestTwitterReply(t *testing.T) {
	e := newEnv(t, dice.Fixed(1))
	c := &chat{}
	e.run(t, handler.Integration, "twitter", "https://x.com/cat/status/9", c)
	require.Len(t, c.replied, 1)
	assert.Contains(t, c.replied[0], "https://fxtwitter.com/cat/status/9")
}

func TestToggleSimulation(t *testing.T) {
	e := newEnv(t, dice.Fixed(1))
	ctx := context.Background()

	e.run(t, handler.Admin, "simulation", "please enable simulation", &chat{})
	s, _ := e.settings.Get(ctx, "G1")
	assert.True(t, s.Simulation)

	e.run(t, handler.Admin, "simulation", "toggle sim", &chat{})
	s, _ = e.settings.Get(ctx, "G1")
	assert.False(t, s.Simulation)

	c := &chat{}
	e.run(t, handler.Admin, "simulation", "TOGGLE the simulation", c)
	s, _ = e.settings.Get(ctx, "G1")
	assert.True(t, s.Simulation)
	assert.Equal(t, []string{e.Replies.Settings.SimulationOn}, c.replied)

	e.run(t, handler.Admin, "simulation", "disable simulation", &chat{})
	s, _ = e.settings.Get(ctx, "G1")
	assert.False(t, s.Simulation)
}

func TestToggleIntegrationAndReport(t *testing.T) {
	e := newEnv(t, dice.Fixed(1))
	e.run(t, handler.Admin, "integration", "enable twitter", &chat{})

	c := &chat{}
	e.run(t, handler.Admin, "settings", "show settings", c)
	assert.Equal(t, []string{"simulation: off, twitter integration: on"}, c.replied)
}

func TestMoodReport(t *testing.T) {
	// Fixed(1) regenerates the mood to 0.
	e := newEnv(t, dice.Fixed(1))
	c := &chat{}
	e.run(t, handler.Admin, "mood", "how are you?", c)
	assert.Equal(t, []string{e.Replies.Mood[pet.MoodSad]}, c.replied)

	e = newEnv(t, dice.Fixed(10))
	c = &chat{}
	e.run(t, handler.Admin, "mood", "what's your mood", c)
	assert.Equal(t, []string{e.Replies.Mood[pet.MoodHappy]}, c.replied)
}

func TestHungerAndFeeding(t *testing.T) {
	e := newEnv(t, dice.Fixed(1))

	c := &chat{}
	e.run(t, handler.Command, "hungry", "are you hungry", c)
	assert.Equal(t, []string{"Nah, I'm good. (hunger 10/10)"}, c.replied)

	e.clock.Advance(7 * time.Hour)
	c = &chat{}
	e.run(t, handler.Command, "hungry", "hungry?", c)
	assert.Contains(t, c.replied[0], "Feed me")
	assert.Contains(t, c.replied[0], "3/10")

	c = &chat{}
	e.run(t, handler.Command, "feed", "feed the cat", c)
	assert.Contains(t, c.replied[0], "Thank you")
	assert.Equal(t, pet.MaxHunger, e.pets.recs["G1"].Hunger)

	c = &chat{}
	e.run(t, handler.Command, "feed", "feed", c)
	assert.Contains(t, c.replied[0], "walks away")
}

func TestPetAndMeowReactions(t *testing.T) {
	// Fixed(1) puts the mood at 0 and every d100 at 1.
	e := newEnv(t, dice.Fixed(1))
	standing := UserMood("U1", epoch)

	c := &chat{}
	e.run(t, handler.Command, "pet_cat", "pets you", c)
	want := pet.PetReaction(0, standing, 1)
	assert.Equal(t, []string{e.Replies.Pet[want][0]}, c.replied, "reaction %s", want)

	c = &chat{}
	e.run(t, handler.Command, "meow", "meow", c)
	want = pet.MeowReaction(0, standing, 1)
	assert.Equal(t, []string{e.Replies.Meow[want][0]}, c.replied, "reaction %s", want)

	// The stripped pet runs in a fresh guild state and must not adopt a cat.
	e = newEnv(t, dice.Fixed(1))
	c = &chat{}
	e.run(t, handler.Special, "pet_cat", "pet", c)
	assert.Equal(t, []string{e.Replies.SpecialPet[0]}, c.replied)
	assert.Empty(t, e.pets.recs)
}

func TestGuessingGame(t *testing.T) {
	cases := []struct {
		name    string
		answer  string
		timeout bool
		want    string
	}{
		{"win", "3", false, "You got it, it was 3!"},
		{"lose", " 2 ", false, "Nope, it was 3."},
		{"invalid", "seven", false, "That's not a number"},
		{"out of range", "6", false, "That's not a number"},
		{"timeout", "", true, "Too slow! It was 3."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t, dice.Fixed(3))
			var pausedDuringAwait bool
			c := &chat{answer: tc.answer, timeout: tc.timeout, onAwait: func() {
				pausedDuringAwait = e.gate.IsPaused("G1")
			}}

			e.run(t, handler.Command, "game", "let's play", c)

			assert.True(t, pausedDuringAwait)
			assert.False(t, e.gate.IsPaused("G1"))
			require.Len(t, c.sent, 2)
			assert.Equal(t, e.Replies.Game.Ask, c.sent[0])
			assert.Contains(t, c.sent[1], tc.want)
		})
	}
}

func TestGuessingGameBusy(t *testing.T) {
	e := newEnv(t, dice.Fixed(3))
	e.gate.Pause("G1")

	c := &chat{}
	e.run(t, handler.Command, "game", "game?", c)
	assert.Equal(t, []string{e.Replies.Game.Busy}, c.replied)
	assert.Empty(t, c.sent)
	assert.True(t, e.gate.IsPaused("G1"), "someone else's hold stays")
}

func TestTreatsExchange(t *testing.T) {
	cases := []struct {
		answer  string
		timeout bool
		want    func(*Replies) string
	}{
		{"yes!", false, func(r *Replies) string { return r.Treats.Yes }},
		{"Okay here", false, func(r *Replies) string { return r.Treats.Yes }},
		{"no way", false, func(r *Replies) string { return r.Treats.No }},
		{"", true, func(r *Replies) string { return r.Treats.Timeout }},
	}
	for _, tc := range cases {
		e := newEnv(t, dice.Fixed(1))
		c := &chat{answer: tc.answer, timeout: tc.timeout}
		e.run(t, handler.Trigger, "treats", "anyone want treats", c)

		assert.Equal(t, []string{e.Replies.Treats.Ask, tc.want(e.Replies)}, c.sent, tc.answer)
		assert.False(t, e.gate.IsPaused("G1"))
	}
}

func TestOverlappingExchangesKeepGuildPaused(t *testing.T) {
	e := newEnv(t, dice.Fixed(3))

	var game, late *chat
	var pausedAfterInner bool
	treatsChat := &chat{answer: "yes", onAwait: func() {
		// While treats waits, a game and a second treats try the same guild.
		game = &chat{answer: "3"}
		e.run(t, handler.Command, "game", "let's play", game)
		late = &chat{answer: "yes"}
		e.run(t, handler.Trigger, "treats", "treats", late)
		pausedAfterInner = e.gate.IsPaused("G1")
	}}
	e.run(t, handler.Trigger, "treats", "anyone want treats", treatsChat)

	assert.Equal(t, []string{e.Replies.Game.Busy}, game.replied)
	assert.Empty(t, game.sent)
	assert.Empty(t, late.sent)
	assert.True(t, pausedAfterInner, "the first exchange still holds the guild")
	assert.Equal(t, []string{e.Replies.Treats.Ask, e.Replies.Treats.Yes}, treatsChat.sent)
	assert.False(t, e.gate.IsPaused("G1"))
}

func TestSpontaneousTriggers(t *testing.T) {
	e := newEnv(t, dice.Fixed(1))

	c := &chat{}
	e.run(t, handler.Trigger, "meow_back", "meow", c)
	assert.Equal(t, []string{e.Replies.MeowBack[0]}, c.sent)

	c = &chat{}
	e.run(t, handler.Trigger, "laser", "where's the red dot", c)
	assert.Equal(t, []string{e.Replies.Laser[0]}, c.sent)
}
