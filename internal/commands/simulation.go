package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/keshon/server-cat/internal/dice"
	"github.com/keshon/server-cat/internal/handler"
)

var petRe = regexp.MustCompile(`(?i)\bpet(?:s|ting)?\b`)

func hungry(env Env) *handler.Handler {
	return &handler.Handler{
		Tag:        "hungry",
		Name:       "Are you hungry",
		Category:   handler.Command,
		Pattern:    regexp.MustCompile(`(?i)\bhungry\b`),
		Simulation: true,
		Run: func(ctx context.Context, req *handler.Request) error {
			cat, err := req.Pet.Cat(ctx, req.Message.GuildID)
			if err != nil {
				return err
			}
			return req.Reply.Reply(ctx, expand(env.Replies.Hunger[cat.HungerReaction()], "hunger", cat.Hunger))
		},
	}
}

func feed(env Env) *handler.Handler {
	return &handler.Handler{
		Tag:        "feed",
		Name:       "Feed",
		Category:   handler.Command,
		Pattern:    regexp.MustCompile(`(?i)\bfeed\b`),
		Simulation: true,
		Run: func(ctx context.Context, req *handler.Request) error {
			res, cat, err := req.Pet.Feed(ctx, req.Message.GuildID)
			if err != nil {
				return err
			}
			return req.Reply.Reply(ctx, expand(env.Replies.Feed[res], "hunger", cat.Hunger))
		},
	}
}

func petCat(env Env) *handler.Handler {
	return &handler.Handler{
		Tag:        "pet_cat",
		Name:       "Pet the cat",
		Category:   handler.Command,
		Pattern:    petRe,
		Simulation: true,
		Run: func(ctx context.Context, req *handler.Request) error {
			cat, err := req.Pet.Cat(ctx, req.Message.GuildID)
			if err != nil {
				return err
			}
			r := cat.ReactionToPet(UserMood(req.Message.AuthorID, env.Now()))
			return req.Reply.Reply(ctx, dice.Pick(env.Die, env.Replies.Pet[r]))
		},
	}
}

func meow(env Env) *handler.Handler {
	return &handler.Handler{
		Tag:        "meow",
		Name:       "Meow at the cat",
		Category:   handler.Command,
		Pattern:    regexp.MustCompile(`(?i)\bmeow\b`),
		Simulation: true,
		Run: func(ctx context.Context, req *handler.Request) error {
			cat, err := req.Pet.Cat(ctx, req.Message.GuildID)
			if err != nil {
				return err
			}
			r := cat.ReactionToMeow(UserMood(req.Message.AuthorID, env.Now()))
			return req.Reply.Reply(ctx, dice.Pick(env.Die, env.Replies.Meow[r]))
		},
	}
}

// guessingGame pauses the guild for the whole exchange so the treats trigger
// cannot cut in while the cat waits for a guess.
func guessingGame(env Env) *handler.Handler {
	return &handler.Handler{
		Tag:          "game",
		Name:         "Guessing game",
		Category:     handler.Command,
		Pattern:      regexp.MustCompile(`(?i)\b(?:let'?s\s+)?play\b|\bgame\b`),
		UsesWaitGate: true,
		Run: func(ctx context.Context, req *handler.Request) error {
			r := env.Replies.Game
			guild := req.Message.GuildID
			release, ok := req.Gate.TryHold(guild)
			if !ok {
				return req.Reply.Reply(ctx, r.Busy)
			}
			defer release()

			answer := env.Die.Roll(5)
			if err := req.Reply.Send(ctx, r.Ask); err != nil {
				return err
			}

			got, err := req.Reply.AwaitReply(ctx, env.AwaitTimeout)
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				return req.Reply.Send(ctx, expand(r.Timeout, "answer", answer))
			case err != nil:
				return fmt.Errorf("await guess: %w", err)
			}

			guess, err := strconv.Atoi(strings.TrimSpace(got))
			switch {
			case err != nil || guess < 1 || guess > 5:
				return req.Reply.Send(ctx, r.Invalid)
			case guess == answer:
				return req.Reply.Send(ctx, expand(r.Win, "answer", answer))
			default:
				return req.Reply.Send(ctx, expand(r.Lose, "answer", answer))
			}
		},
	}
}

// specialPetCat answers mentions in guilds without simulation. It never
// touches pet state.
func specialPetCat(env Env) *handler.Handler {
	return &handler.Handler{
		Tag:      "pet_cat",
		Name:     "Pet the cat (no simulation)",
		Category: handler.Special,
		Pattern:  petRe,
		Run: func(ctx context.Context, req *handler.Request) error {
			return req.Reply.Reply(ctx, dice.Pick(env.Die, env.Replies.SpecialPet))
		},
	}
}
