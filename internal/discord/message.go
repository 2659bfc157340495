package discord

import (
	"github.com/keshon/server-cat/internal/handler"

	"github.com/bwmarrin/discordgo"
)

// toMessage converts a gateway message. botID is this bot's user ID; available
// is the guild's availability as the session state knows it.
func toMessage(m *discordgo.Message, botID string, available bool) *handler.Message {
	msg := &handler.Message{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		Available: available,
		// Messages without an author (webhooks, system) are treated as bots.
		AuthorIsBot: true,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorName = m.Author.Username
		msg.AuthorIsBot = m.Author.Bot || m.Author.ID == botID
	}
	for _, u := range m.Mentions {
		if u != nil && u.ID == botID {
			msg.Mentioned = true
			break
		}
	}
	return msg
}

// guildAvailable reports false only when the state knows the guild is in an
// outage. Guilds missing from the state are assumed available.
func guildAvailable(state *discordgo.State, guildID string) bool {
	if state == nil || guildID == "" {
		return true
	}
	g, err := state.Guild(guildID)
	if err != nil {
		return true
	}
	return !g.Unavailable
}
