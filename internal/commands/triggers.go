package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/keshon/server-cat/internal/dice"
	"github.com/keshon/server-cat/internal/handler"
)

// Trigger chances, in percent.
const (
	meowBackChance = 30
	laserChance    = 50
	treatsChance   = 40
)

var affirmativeRe = regexp.MustCompile(`(?i)^\s*(?:y|yes|yeah|yep|sure|ok(?:ay)?)\b`)

func meowBack(env Env) *handler.Handler {
	return &handler.Handler{
		Tag:           "meow_back",
		Name:          "Meow back",
		Category:      handler.Trigger,
		Pattern:       regexp.MustCompile(`(?i)\bmeow\b`),
		TriggerChance: meowBackChance,
		Run: func(ctx context.Context, req *handler.Request) error {
			return req.Reply.Send(ctx, dice.Pick(env.Die, env.Replies.MeowBack))
		},
	}
}

func laser(env Env) *handler.Handler {
	return &handler.Handler{
		Tag:           "laser",
		Name:          "Laser pointer",
		Category:      handler.Trigger,
		Pattern:       regexp.MustCompile(`(?i)\blaser\b|\bred\s+dot\b`),
		TriggerChance: laserChance,
		Run: func(ctx context.Context, req *handler.Request) error {
			return req.Reply.Send(ctx, dice.Pick(env.Die, env.Replies.Laser))
		},
	}
}

func treats(env Env) *handler.Handler {
	return &handler.Handler{
		Tag:           "treats",
		Name:          "Treats?",
		Category:      handler.Trigger,
		Pattern:       regexp.MustCompile(`(?i)\btreats?\b`),
		UsesWaitGate:  true,
		TriggerChance: treatsChance,
		Run: func(ctx context.Context, req *handler.Request) error {
			r := env.Replies.Treats
			release, ok := req.Gate.TryHold(req.Message.GuildID)
			if !ok {
				// Another exchange got the guild between the pipeline's check and here.
				return nil
			}
			defer release()

			if err := req.Reply.Send(ctx, r.Ask); err != nil {
				return err
			}
			got, err := req.Reply.AwaitReply(ctx, env.AwaitTimeout)
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				return req.Reply.Send(ctx, r.Timeout)
			case err != nil:
				return fmt.Errorf("await treats answer: %w", err)
			case affirmativeRe.MatchString(got):
				return req.Reply.Send(ctx, r.Yes)
			default:
				return req.Reply.Send(ctx, r.No)
			}
		},
	}
}
