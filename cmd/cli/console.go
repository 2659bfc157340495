package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/keshon/server-cat/internal/discord"
	"github.com/keshon/server-cat/internal/handler"
)

const mentionPrefix = "@cat"

// console feeds stdin lines to the pipeline as messages of a single author in
// a single channel, and prints whatever the cat answers.
type console struct {
	pipeline discord.Dispatcher
	out      io.Writer
	guildID  string
	authorID string

	lines <-chan string
	seq   int
}

func (c *console) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	c.lines = lines

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			c.handle(ctx, line)
		}
	}
}

func (c *console) handle(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	c.seq++
	msg := &handler.Message{
		ID:         strconv.Itoa(c.seq),
		GuildID:    c.guildID,
		ChannelID:  c.guildID,
		AuthorID:   c.authorID,
		AuthorName: c.authorID,
		Content:    line,
		Mentioned:  strings.HasPrefix(strings.ToLower(line), mentionPrefix),
		Available:  true,
	}
	res := c.pipeline.Dispatch(ctx, msg, c)
	if res.Err != nil {
		fmt.Fprintf(c.out, "! %v\n", res.Err)
	}
}

func (c *console) Send(_ context.Context, content string) error {
	_, err := fmt.Fprintf(c.out, "cat: %s\n", content)
	return err
}

func (c *console) Reply(_ context.Context, content string) error {
	_, err := fmt.Fprintf(c.out, "cat> %s\n", content)
	return err
}

// AwaitReply takes the next stdin line as the answer.
func (c *console) AwaitReply(ctx context.Context, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case line, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
