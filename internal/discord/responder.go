package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/keshon/server-cat/internal/handler"
	"github.com/keshon/server-cat/pkg/retrylimit"

	"github.com/bwmarrin/discordgo"
)

// sender is the part of *discordgo.Session the responder needs.
type sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// restStatus extracts the HTTP status of a failed REST call.
func restStatus(err error) int {
	var re *discordgo.RESTError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response.StatusCode
	}
	return retrylimit.HTTPStatus(err)
}

// responder answers one message through the REST API, rate limited and with
// retries on 429 and 5xx.
type responder struct {
	s         sender
	lim       *retrylimit.AdaptiveLimiter
	retry     retrylimit.Config
	collector *collector
	msg       *handler.Message
}

var _ handler.Responder = (*responder)(nil)

func (r *responder) do(ctx context.Context, what string, fn func(ctx context.Context) error) error {
	if err := retrylimit.Do(ctx, r.lim, r.retry, fn); err != nil {
		return fmt.Errorf("%s to channel %s: %w", what, r.msg.ChannelID, err)
	}
	return nil
}

func (r *responder) Send(ctx context.Context, content string) error {
	return r.do(ctx, "send", func(ctx context.Context) error {
		_, err := r.s.ChannelMessageSend(r.msg.ChannelID, content, discordgo.WithContext(ctx))
		return err
	})
}

func (r *responder) Reply(ctx context.Context, content string) error {
	ref := &discordgo.MessageReference{
		MessageID: r.msg.ID,
		ChannelID: r.msg.ChannelID,
		GuildID:   r.msg.GuildID,
	}
	return r.do(ctx, "reply", func(ctx context.Context) error {
		_, err := r.s.ChannelMessageSendReply(r.msg.ChannelID, content, ref, discordgo.WithContext(ctx))
		return err
	})
}

func (r *responder) AwaitReply(ctx context.Context, timeout time.Duration) (string, error) {
	return r.collector.await(ctx, r.msg.ChannelID, r.msg.AuthorID, timeout)
}
