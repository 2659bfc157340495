// Package discord connects the dispatch pipeline to a Discord gateway session.
package discord

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/keshon/server-cat/internal/dispatch"
	"github.com/keshon/server-cat/internal/handler"
	"github.com/keshon/server-cat/pkg/retrylimit"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// Dispatcher decides and runs the bot's answer to a message.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *handler.Message, reply handler.Responder) dispatch.Result
}

type Options struct {
	// Blacklisted reports guilds the bot leaves as soon as it sees them.
	Blacklisted func(guildID string) bool
	// Limiter paces outbound messages. Defaults to 5 rps adapting within 1..20.
	Limiter *retrylimit.AdaptiveLimiter
	Retry   retrylimit.Config
}

// Bot is a Discord bot
type Bot struct {
	dg        *discordgo.Session
	pipeline  Dispatcher
	opts      Options
	collector *collector
	log       zerolog.Logger

	mu  sync.RWMutex
	ctx context.Context
}

// New creates the session; nothing connects until Run.
func New(token string, pipeline Dispatcher, opts Options, log zerolog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	log = log.With().Str("component", "discord").Logger()

	if opts.Limiter == nil {
		opts.Limiter = retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5)
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retrylimit.DefaultConfig()
	}
	opts.Retry.Status = restStatus
	opts.Retry.Logger = log

	b := &Bot{
		dg:        dg,
		pipeline:  pipeline,
		opts:      opts,
		collector: newCollector(),
		log:       log,
		ctx:       context.Background(),
	}
	b.configureIntents()
	routeLibraryLogs(log)

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onMessageCreate)
	dg.AddHandler(b.onDisconnect)
	dg.AddHandler(b.onResumed)
	return b, nil
}

// Run opens the gateway and blocks until ctx ends. discordgo reconnects on its
// own after a dropped connection.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, closing session")
	return nil
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
}

func (b *Bot) runContext() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

func (b *Bot) isGuildBlacklisted(guildID string) bool {
	return b.opts.Blacklisted != nil && b.opts.Blacklisted(guildID)
}

func (b *Bot) leave(s *discordgo.Session, guildID, name string) {
	b.log.Info().Str("guild_id", guildID).Str("guild", name).Msg("leaving blacklisted guild")
	if err := s.GuildLeave(guildID); err != nil {
		b.log.Error().Err(err).Str("guild_id", guildID).Msg("failed to leave guild")
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		if b.isGuildBlacklisted(g.ID) {
			b.leave(s, g.ID, g.Name)
		}
	}
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord bot is running")
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.isGuildBlacklisted(g.ID) {
		b.leave(s, g.ID, g.Name)
		return
	}
	b.log.Debug().Str("guild_id", g.ID).Str("guild", g.Name).Msg("guild available")
}

func (b *Bot) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	b.log.Warn().Msg("gateway connection lost, reconnecting")
}

func (b *Bot) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	b.log.Info().Msg("gateway session resumed")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || s.State == nil || s.State.User == nil {
		return
	}
	msg := toMessage(m.Message, s.State.User.ID, guildAvailable(s.State, m.GuildID))
	b.handle(b.runContext(), s, msg)
}

// handle runs one message. A panic is logged and dropped so the session keeps
// serving other events.
func (b *Bot) handle(ctx context.Context, s sender, msg *handler.Message) {
	defer func() {
		if v := recover(); v != nil {
			b.log.Error().Interface("panic", v).Bytes("stack", debug.Stack()).
				Str("guild_id", msg.GuildID).Msg("message handler panicked")
		}
	}()

	// An answer to a pending exchange belongs to that exchange only.
	if !msg.AuthorIsBot && b.collector.offer(msg.ChannelID, msg.AuthorID, msg.Content) {
		return
	}

	reply := &responder{
		s:         s,
		lim:       b.opts.Limiter,
		retry:     b.opts.Retry,
		collector: b.collector,
		msg:       msg,
	}
	// Handler failures are already logged by the pipeline.
	res := b.pipeline.Dispatch(ctx, msg, reply)
	if res.Err != nil {
		b.log.Debug().Err(res.Err).Str("guild_id", msg.GuildID).Str("message_id", msg.ID).Msg("message not answered")
	}
}

// routeLibraryLogs sends discordgo's own log lines through zerolog.
func routeLibraryLogs(log zerolog.Logger) {
	log = log.With().Str("source", "discordgo").Logger()
	discordgo.Logger = func(level, _ int, format string, a ...any) {
		ev := log.Debug()
		switch level {
		case discordgo.LogError:
			ev = log.Error()
		case discordgo.LogWarning:
			ev = log.Warn()
		case discordgo.LogInformational:
			ev = log.Info()
		}
		ev.Msgf(format, a...)
	}
}
