// Package dispatch decides which handler, if any, answers an inbound message.
//
// The rule chain runs in a fixed order and stops at the first handler that
// takes the message:
//
//  1. messages from bots and from unavailable guilds are dropped;
//  2. mentioned: admin handlers;
//  3. integration handlers, when the guild enabled the integration;
//  4. mentioned: command handlers (a simulation-only match in a guild without
//     simulation swallows the message);
//  5. trigger handlers, gated by a d100 roll and the wait-gate;
//  6. mentioned: the pet_cat fallback, full or stripped depending on simulation.
package dispatch

import (
	"context"
	"fmt"

	"github.com/keshon/server-cat/internal/dice"
	"github.com/keshon/server-cat/internal/handler"
	"github.com/keshon/server-cat/internal/pet"
	"github.com/keshon/server-cat/internal/settings"
	"github.com/keshon/server-cat/internal/waitgate"

	"github.com/rs/zerolog"
)

// FallbackTag is the handler answering a mention nothing else matched.
const FallbackTag = "pet_cat"

// Config tunes the pipeline.
type Config struct {
	// DevMode fixes the trigger roll at 1, so every trigger with a non-zero chance fires.
	DevMode bool
	// Die rolls the trigger d100. Defaults to a random die.
	Die dice.Die
	// Middleware wraps every handler invocation, after panic recovery and logging.
	Middleware []handler.Middleware
}

// Result describes what the pipeline did with a message.
type Result struct {
	// Handler is the handler that took the message, nil when nothing did.
	Handler *handler.Handler
	// Swallowed is set when a simulation-only command matched in a guild
	// without simulation; nothing ran and nothing was sent.
	Swallowed bool
	// Roll is the trigger d100, zero when the pipeline never got that far.
	Roll int
	// Err is the handler's error, or the settings lookup failure.
	Err error
}

// Pipeline is safe for concurrent use; each Dispatch call is independent.
type Pipeline struct {
	registry *handler.Registry
	settings *settings.Store
	pet      *pet.Engine
	gate     *waitgate.Gate
	die      dice.Die
	mws      []handler.Middleware
	log      zerolog.Logger
}

// New creates a Pipeline over the registry and the state it hands to handlers.
func New(cfg Config, reg *handler.Registry, st *settings.Store, engine *pet.Engine, gate *waitgate.Gate, log zerolog.Logger) *Pipeline {
	log = log.With().Str("component", "dispatch").Logger()

	die := cfg.Die
	switch {
	case cfg.DevMode:
		die = dice.Fixed(1)
	case die == nil:
		die = dice.NewRandom()
	}

	mws := []handler.Middleware{handler.WithLogger(log), handler.WithRecover()}
	mws = append(mws, cfg.Middleware...)

	return &Pipeline{
		registry: reg,
		settings: st,
		pet:      engine,
		gate:     gate,
		die:      die,
		mws:      mws,
		log:      log,
	}
}

// Dispatch runs the rule chain for msg and invokes at most one handler.
func (p *Pipeline) Dispatch(ctx context.Context, msg *handler.Message, reply handler.Responder) Result {
	if msg.AuthorIsBot || !msg.Available || msg.GuildID == "" {
		return Result{}
	}

	gs, err := p.settings.Get(ctx, msg.GuildID)
	if err != nil {
		p.log.Error().Err(err).Str("guild_id", msg.GuildID).Msg("settings unavailable, dropping message")
		return Result{Err: fmt.Errorf("dispatch: %w", err)}
	}

	if msg.Mentioned {
		for _, h := range p.registry.Lookup(handler.Admin) {
			if !h.Matches(msg.Content) {
				continue
			}
			req := p.request(msg, reply)
			if h.RequiresSettings {
				req.Settings = p.settings
			} else {
				req.Pet = p.pet
			}
			return p.invoke(ctx, h, req)
		}
	}

	if gs.Integration {
		for _, h := range p.registry.Lookup(handler.Integration) {
			if !h.Matches(msg.Content) {
				continue
			}
			req := p.request(msg, reply)
			req.Pet = p.pet
			return p.invoke(ctx, h, req)
		}
	}

	if msg.Mentioned {
		for _, h := range p.registry.Lookup(handler.Command) {
			if !h.Matches(msg.Content) {
				continue
			}
			if h.Simulation && !gs.Simulation {
				p.log.Debug().Str("handler", h.String()).Str("guild_id", msg.GuildID).
					Msg("simulation command matched with simulation off, message swallowed")
				return Result{Handler: h, Swallowed: true}
			}
			return p.invoke(ctx, h, p.withGateOrPet(h, p.request(msg, reply)))
		}
	}

	roll := dice.D100(p.die)
	for _, h := range p.registry.Lookup(handler.Trigger) {
		if !h.Matches(msg.Content) || roll > h.TriggerChance {
			continue
		}
		if h.RequiresMention && !msg.Mentioned {
			continue
		}
		if h.UsesWaitGate && p.gate.IsPaused(msg.GuildID) {
			p.log.Debug().Str("handler", h.String()).Str("guild_id", msg.GuildID).
				Msg("trigger skipped, guild is waiting on a reply")
			continue
		}
		res := p.invoke(ctx, h, p.withGateOrPet(h, p.request(msg, reply)))
		res.Roll = roll
		return res
	}

	if msg.Mentioned {
		cat := handler.Special
		if gs.Simulation {
			cat = handler.Command
		}
		if h, ok := p.registry.Get(cat, FallbackTag); ok {
			req := p.request(msg, reply)
			req.Pet = p.pet
			res := p.invoke(ctx, h, req)
			res.Roll = roll
			return res
		}
		p.log.Warn().Str("category", cat.String()).Msg("no fallback handler registered")
	}

	return Result{Roll: roll}
}

func (p *Pipeline) request(msg *handler.Message, reply handler.Responder) *handler.Request {
	return &handler.Request{Message: msg, Reply: reply}
}

func (p *Pipeline) withGateOrPet(h *handler.Handler, req *handler.Request) *handler.Request {
	if h.UsesWaitGate {
		req.Gate = p.gate
	} else {
		req.Pet = p.pet
	}
	return req
}

func (p *Pipeline) invoke(ctx context.Context, h *handler.Handler, req *handler.Request) Result {
	run := handler.Chain(h, p.mws...)
	return Result{Handler: h, Err: run(ctx, req)}
}
