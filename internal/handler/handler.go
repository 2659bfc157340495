// Package handler defines what the bot can respond with: handler descriptors
// grouped in precedence categories, the request a handler runs with, and the
// registry the dispatch pipeline scans.
package handler

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/keshon/server-cat/internal/pet"
	"github.com/keshon/server-cat/internal/settings"
	"github.com/keshon/server-cat/internal/waitgate"
)

// Category is a dispatch precedence tier. Lower values are consulted first.
type Category int

const (
	Admin Category = iota
	Integration
	Command
	Trigger
	Special

	numCategories
)

// Categories lists every category in dispatch order.
func Categories() []Category {
	return []Category{Admin, Integration, Command, Trigger, Special}
}

func (c Category) String() string {
	switch c {
	case Admin:
		return "admin"
	case Integration:
		return "integration"
	case Command:
		return "command"
	case Trigger:
		return "trigger"
	case Special:
		return "special"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

func (c Category) valid() bool {
	return c >= Admin && c < numCategories
}

// Func runs a matched handler.
type Func func(ctx context.Context, req *Request) error

// Handler describes one behavior. Handlers are immutable once registered.
type Handler struct {
	// Tag identifies the handler within its category.
	Tag      string
	Name     string
	Category Category
	Pattern  *regexp.Regexp

	// RequiresSettings hands an admin handler the settings store instead of the pet.
	RequiresSettings bool
	// RequiresMention keeps a trigger from firing unless the bot is addressed.
	// Admin and command handlers are only ever scanned for mentions.
	RequiresMention bool
	// Simulation limits the handler to guilds with simulation enabled.
	Simulation bool
	// UsesWaitGate hands the handler the wait-gate instead of the pet.
	UsesWaitGate bool
	// TriggerChance is the d100 threshold a trigger's roll must not exceed.
	TriggerChance int

	Run Func
}

func (h *Handler) String() string {
	return h.Category.String() + "/" + h.Tag
}

// Matches reports whether the handler's pattern matches content.
func (h *Handler) Matches(content string) bool {
	return h.Pattern.MatchString(content)
}

// Message is an inbound chat message as the pipeline sees it.
type Message struct {
	ID         string
	GuildID    string
	ChannelID  string
	AuthorID   string
	AuthorName string
	Content    string

	// AuthorIsBot is set for messages written by any bot account, this one included.
	AuthorIsBot bool
	// Mentioned is set when the message addresses this bot.
	Mentioned bool
	// Available is false while the platform reports an outage for the guild.
	Available bool
}

// Responder sends replies back to where a message came from.
type Responder interface {
	// Send posts content to the message's channel.
	Send(ctx context.Context, content string) error
	// Reply posts content as a reply to the message.
	Reply(ctx context.Context, content string) error
	// AwaitReply waits for the next message from the same author in the same
	// channel and returns its content.
	AwaitReply(ctx context.Context, timeout time.Duration) (string, error)
}

// Request is what a matched handler runs with. Exactly one of Settings, Pet
// and Gate is set, chosen by the handler's flags.
type Request struct {
	Message *Message
	Reply   Responder

	Settings *settings.Store
	Pet      *pet.Engine
	Gate     *waitgate.Gate
}
