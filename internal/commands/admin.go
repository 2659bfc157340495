package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/keshon/server-cat/internal/handler"
	"github.com/keshon/server-cat/internal/settings"
)

var (
	simulationToggleRe  = regexp.MustCompile(`(?i)\b(enable|disable|toggle)\s+(?:the\s+)?sim(?:ulation)?\b`)
	integrationToggleRe = regexp.MustCompile(`(?i)\b(enable|disable|toggle)\s+(?:the\s+)?(?:twitter|integration)\b`)
)

// switchTo applies enable/disable/toggle to the current value.
func switchTo(verb string, current bool) bool {
	switch strings.ToLower(verb) {
	case "enable":
		return true
	case "disable":
		return false
	default:
		return !current
	}
}

func toggleSimulation(env Env) *handler.Handler {
	return &handler.Handler{
		Tag:              "simulation",
		Name:             "Toggle simulation",
		Category:         handler.Admin,
		Pattern:          simulationToggleRe,
		RequiresSettings: true,
		Run: func(ctx context.Context, req *handler.Request) error {
			verb := simulationToggleRe.FindStringSubmatch(req.Message.Content)[1]
			s, err := req.Settings.Update(ctx, req.Message.GuildID, func(s *settings.Settings) {
				s.Simulation = switchTo(verb, s.Simulation)
			})
			if err != nil {
				return fmt.Errorf("toggle simulation: %w", err)
			}
			msg := env.Replies.Settings.SimulationOff
			if s.Simulation {
				msg = env.Replies.Settings.SimulationOn
			}
			return req.Reply.Reply(ctx, msg)
		},
	}
}

func toggleIntegration(env Env) *handler.Handler {
	return &handler.Handler{
		Tag:              "integration",
		Name:             "Toggle twitter integration",
		Category:         handler.Admin,
		Pattern:          integrationToggleRe,
		RequiresSettings: true,
		Run: func(ctx context.Context, req *handler.Request) error {
			verb := integrationToggleRe.FindStringSubmatch(req.Message.Content)[1]
			s, err := req.Settings.Update(ctx, req.Message.GuildID, func(s *settings.Settings) {
				s.Integration = switchTo(verb, s.Integration)
			})
			if err != nil {
				return fmt.Errorf("toggle integration: %w", err)
			}
			msg := env.Replies.Settings.IntegrationOff
			if s.Integration {
				msg = env.Replies.Settings.IntegrationOn
			}
			return req.Reply.Reply(ctx, msg)
		},
	}
}

func settingsReport(env Env) *handler.Handler {
	return &handler.Handler{
		Tag:              "settings",
		Name:             "Show settings",
		Category:         handler.Admin,
		Pattern:          regexp.MustCompile(`(?i)\bsettings\b`),
		RequiresSettings: true,
		Run: func(ctx context.Context, req *handler.Request) error {
			s, err := req.Settings.Get(ctx, req.Message.GuildID)
			if err != nil {
				return fmt.Errorf("read settings: %w", err)
			}
			return req.Reply.Reply(ctx, expand(env.Replies.Settings.Report,
				"simulation", s.Simulation,
				"integration", s.Integration,
			))
		},
	}
}

// mood reports the global mood; it needs no guild state.
func mood(env Env) *handler.Handler {
	return &handler.Handler{
		Tag:      "mood",
		Name:     "How are you",
		Category: handler.Admin,
		Pattern:  regexp.MustCompile(`(?i)how\s+are\s+you|\bmood\b`),
		Run: func(ctx context.Context, req *handler.Request) error {
			return req.Reply.Reply(ctx, env.Replies.Mood[req.Pet.Mood().Class()])
		},
	}
}
