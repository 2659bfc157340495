package dispatch

import (
	"context"
	"errors"
	"regexp"
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

type nopResponder struct{}

func (nopResponder) Send(context.Context, string) error  { return nil }
func (nopResponder) Reply(context.Context, string) error { return nil }
func (nopResponder) AwaitReply(context.Context, time.Duration) (string, error) {
	return "", context.DeadlineExceeded
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

// recorder captures which handler ran and what it was handed.
type recorder struct {
	mu    sync.Mutex
	calls []string
	reqs  []*handler.Request
}

func (r *recorder) fn(tag string) handler.Func {
	return func(_ context.Context, req *handler.Request) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, tag)
		r.reqs = append(r.reqs, req)
		return nil
	}
}

func (r *recorder) last() *handler.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.reqs) == 0 {
		return nil
	}
	return r.reqs[len(r.reqs)-1]
}

type fixture struct {
	rec      *recorder
	settings *settings.Store
	gate     *waitgate.Gate
	engine   *pet.Engine
	pipeline *Pipeline
}

// newFixture builds a pipeline over a small handler table:
//
//	admin:       toggle_sim (settings), mood (pet)
//	integration: twitter
//	command:     feed (sim), game (wait-gate), pet_cat (sim)
//	trigger:     never (0%), treat (wait-gate, 100%), meow (100%), hey (mention, 100%)
//	special:     pet_cat
func newFixture(t *testing.T, cfg Config, defaults settings.Defaults) *fixture {
	t.Helper()
	rec := &recorder{}
	re := regexp.MustCompile

	reg, err := handler.NewRegistry(
		&handler.Handler{Tag: "toggle_sim", Category: handler.Admin, Pattern: re(`(?i)toggle sim`), RequiresSettings: true, Run: rec.fn("toggle_sim")},
		&handler.Handler{Tag: "mood", Category: handler.Admin, Pattern: re(`(?i)mood`), Run: rec.fn("mood")},
		&handler.Handler{Tag: "twitter", Category: handler.Integration, Pattern: re(`twitter\.com/\w+/status/\d+`), Run: rec.fn("twitter")},
		&handler.Handler{Tag: "feed", Category: handler.Command, Pattern: re(`(?i)feed`), Simulation: true, Run: rec.fn("feed")},
		&handler.Handler{Tag: "game", Category: handler.Command, Pattern: re(`(?i)play|mood`), UsesWaitGate: true, Run: rec.fn("game")},
		&handler.Handler{Tag: FallbackTag, Category: handler.Command, Pattern: re(`(?i)\bpet\b`), Simulation: true, Run: rec.fn("command/pet_cat")},
		&handler.Handler{Tag: "never", Category: handler.Trigger, Pattern: re(`(?i)meow`), TriggerChance: 0, Run: rec.fn("never")},
		&handler.Handler{Tag: "treat", Category: handler.Trigger, Pattern: re(`(?i)treat|meow`), UsesWaitGate: true, TriggerChance: 100, Run: rec.fn("treat")},
		&handler.Handler{Tag: "meow", Category: handler.Trigger, Pattern: re(`(?i)meow`), TriggerChance: 100, Run: rec.fn("meow")},
		&handler.Handler{Tag: "hey", Category: handler.Trigger, Pattern: re(`(?i)hey`), RequiresMention: true, TriggerChance: 100, Run: rec.fn("hey")},
		&handler.Handler{Tag: FallbackTag, Category: handler.Special, Pattern: re(`(?i)\bpet\b`), Run: rec.fn("special/pet_cat")},
	)
	require.NoError(t, err)

	st := settings.NewStore(nil, defaults, zerolog.Nop())
	gate := waitgate.New()
	engine := pet.NewEngine(pet.NewMood(dice.Fixed(5)), &memPets{recs: map[string]pet.Record{}}, nil, zerolog.Nop())
	return &fixture{
		rec:      rec,
		settings: st,
		gate:     gate,
		engine:   engine,
		pipeline: New(cfg, reg, st, engine, gate, zerolog.Nop()),
	}
}

func (f *fixture) dispatch(msg *handler.Message) Result {
	return f.pipeline.Dispatch(context.Background(), msg, nopResponder{})
}

func msg(content string, mentioned bool) *handler.Message {
	return &handler.Message{
		ID: "m1", GuildID: "G1", ChannelID: "C1", AuthorID: "U1",
		Content: content, Mentioned: mentioned, Available: true,
	}
}

func tagOf(r Result) string {
	if r.Handler == nil {
		return ""
	}
	return r.Handler.String()
}

func TestRejectsBotsAndOutages(t *testing.T) {
	f := newFixture(t, Config{DevMode: true}, settings.Defaults{})

	bot := msg("meow", true)
	bot.AuthorIsBot = true
	assert.Nil(t, f.dispatch(bot).Handler)

	down := msg("meow", true)
	down.Available = false
	assert.Nil(t, f.dispatch(down).Handler)

	dm := msg("meow", true)
	dm.GuildID = ""
	assert.Nil(t, f.dispatch(dm).Handler)

	assert.Empty(t, f.rec.calls)
}

func TestAdminBeatsCommand(t *testing.T) {
	f := newFixture(t, Config{DevMode: true}, settings.Defaults{Simulation: true})

	// "mood" matches both the admin mood handler and the game command.
	res := f.dispatch(msg("what's your mood", true))
	require.NoError(t, res.Err)
	assert.Equal(t, "admin/mood", tagOf(res))
	assert.Equal(t, []string{"mood"}, f.rec.calls)
}

func TestAdminNeedsMention(t *testing.T) {
	f := newFixture(t, Config{DevMode: true}, settings.Defaults{})
	res := f.dispatch(msg("toggle sim", false))
	assert.Nil(t, res.Handler)
	assert.Empty(t, f.rec.calls)
}

func TestAdminReceivesSettingsOrPet(t *testing.T) {
	f := newFixture(t, Config{DevMode: true}, settings.Defaults{})

	f.dispatch(msg("toggle sim", true))
	req := f.rec.last()
	assert.Same(t, f.settings, req.Settings)
	assert.Nil(t, req.Pet)
	assert.Nil(t, req.Gate)

	f.dispatch(msg("mood", true))
	req = f.rec.last()
	assert.Same(t, f.engine, req.Pet)
	assert.Nil(t, req.Settings)
}

func TestIntegrationOnlyWhenEnabled(t *testing.T) {
	f := newFixture(t, Config{DevMode: true}, settings.Defaults{})
	link := "look https://twitter.com/cat/status/123"

	assert.Nil(t, f.dispatch(msg(link, false)).Handler)

	_, err := f.settings.Update(context.Background(), "G1", func(s *settings.Settings) { s.Integration = true })
	require.NoError(t, err)

	res := f.dispatch(msg(link, false))
	assert.Equal(t, "integration/twitter", tagOf(res))
}

func TestSimulationCommandSwallowedWhenOff(t *testing.T) {
	f := newFixture(t, Config{DevMode: true}, settings.Defaults{})

	// "feed meow" would also match the meow trigger; the swallowed command ends it.
	res := f.dispatch(msg("feed meow", true))
	assert.True(t, res.Swallowed)
	assert.Equal(t, "command/feed", tagOf(res))
	assert.Empty(t, f.rec.calls)
}

func TestSimulationCommandRunsWhenOn(t *testing.T) {
	f := newFixture(t, Config{DevMode: true}, settings.Defaults{Simulation: true})

	res := f.dispatch(msg("feed me", true))
	assert.False(t, res.Swallowed)
	assert.Equal(t, "command/feed", tagOf(res))
	assert.Same(t, f.engine, f.rec.last().Pet)
}

func TestWaitGateCommandGetsGate(t *testing.T) {
	f := newFixture(t, Config{DevMode: true}, settings.Defaults{})

	res := f.dispatch(msg("let's play", true))
	assert.Equal(t, "command/game", tagOf(res))
	req := f.rec.last()
	assert.Same(t, f.gate, req.Gate)
	assert.Nil(t, req.Pet)
}

func TestDevModeTriggerChances(t *testing.T) {
	f := newFixture(t, Config{DevMode: true}, settings.Defaults{})

	// "never" (0%) sits first and must not fire; "treat" (100%) takes it.
	res := f.dispatch(msg("meow", false))
	assert.Equal(t, 1, res.Roll)
	assert.Equal(t, "trigger/treat", tagOf(res))
	assert.NotContains(t, f.rec.calls, "never")
}

func TestRollAboveChanceSkipsTrigger(t *testing.T) {
	f := newFixture(t, Config{Die: dice.Fixed(100)}, settings.Defaults{})
	res := f.dispatch(msg("meow", false))
	assert.Equal(t, 100, res.Roll)
	assert.Equal(t, "trigger/treat", tagOf(res), "100 <= 100 still fires")

	f = newFixture(t, Config{Die: dice.Fixed(50)}, settings.Defaults{})
	f.pipeline.registry = handler.MustRegistry(
		&handler.Handler{Tag: "rare", Category: handler.Trigger, Pattern: regexp.MustCompile(`meow`), TriggerChance: 49, Run: f.rec.fn("rare")},
	)
	res = f.dispatch(msg("meow", false))
	assert.Nil(t, res.Handler)
}

func TestPausedGateSkipsToNextTrigger(t *testing.T) {
	f := newFixture(t, Config{DevMode: true}, settings.Defaults{})
	f.gate.Pause("G1")

	res := f.dispatch(msg("meow", false))
	assert.Equal(t, "trigger/meow", tagOf(res))
	assert.Equal(t, []string{"meow"}, f.rec.calls)
	assert.Same(t, f.engine, f.rec.last().Pet)

	// Another guild is unaffected.
	other := msg("meow", false)
	other.GuildID = "G2"
	assert.Equal(t, "trigger/treat", tagOf(f.dispatch(other)))
}

func TestPausedGateWithNothingElseFallsThrough(t *testing.T) {
	f := newFixture(t, Config{DevMode: true}, settings.Defaults{})
	f.gate.Pause("G1")

	assert.Nil(t, f.dispatch(msg("treat?", false)).Handler)

	res := f.dispatch(msg("treat?", true))
	assert.Equal(t, "special/pet_cat", tagOf(res))
}

func TestMentionOnlyTrigger(t *testing.T) {
	f := newFixture(t, Config{DevMode: true}, settings.Defaults{})
	assert.Nil(t, f.dispatch(msg("hey", false)).Handler)
	assert.Equal(t, "trigger/hey", tagOf(f.dispatch(msg("hey", true))))
}

func TestFallbackDependsOnSimulation(t *testing.T) {
	f := newFixture(t, Config{DevMode: true}, settings.Defaults{})
	res := f.dispatch(msg("hello there", true))
	assert.Equal(t, "special/pet_cat", tagOf(res))

	f = newFixture(t, Config{DevMode: true}, settings.Defaults{Simulation: true})
	res = f.dispatch(msg("hello there", true))
	assert.Equal(t, "command/pet_cat", tagOf(res))
	assert.Same(t, f.engine, f.rec.last().Pet)
}

func TestSilentWithoutMentionOrMatch(t *testing.T) {
	f := newFixture(t, Config{DevMode: true}, settings.Defaults{Simulation: true})
	res := f.dispatch(msg("just chatting", false))
	assert.Nil(t, res.Handler)
	assert.NoError(t, res.Err)
	assert.Empty(t, f.rec.calls)
}

func TestHandlerFailureIsContained(t *testing.T) {
	f := newFixture(t, Config{DevMode: true}, settings.Defaults{})
	boom := errors.New("db down")
	f.pipeline.registry = handler.MustRegistry(
		&handler.Handler{Tag: "fail", Category: handler.Trigger, Pattern: regexp.MustCompile(`fail`), TriggerChance: 100,
			Run: func(context.Context, *handler.Request) error { return boom }},
		&handler.Handler{Tag: "panic", Category: handler.Trigger, Pattern: regexp.MustCompile(`panic`), TriggerChance: 100,
			Run: func(context.Context, *handler.Request) error { panic("oops") }},
		&handler.Handler{Tag: "ok", Category: handler.Trigger, Pattern: regexp.MustCompile(`ok`), TriggerChance: 100,
			Run: f.rec.fn("ok")},
	)

	assert.ErrorIs(t, f.dispatch(msg("fail", false)).Err, boom)

	var pe *handler.PanicError
	assert.ErrorAs(t, f.dispatch(msg("panic", false)).Err, &pe)

	res := f.dispatch(msg("ok", false))
	assert.NoError(t, res.Err)
	assert.Equal(t, []string{"ok"}, f.rec.calls)
}

func TestExtraMiddlewareWraps(t *testing.T) {
	var seen []string
	mw := func(h *handler.Handler, next handler.Func) handler.Func {
		return func(ctx context.Context, req *handler.Request) error {
			seen = append(seen, h.Tag)
			return next(ctx, req)
		}
	}
	f := newFixture(t, Config{DevMode: true, Middleware: []handler.Middleware{mw}}, settings.Defaults{})
	f.dispatch(msg("meow", false))
	assert.Equal(t, []string{"treat"}, seen)
}
