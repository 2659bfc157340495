package discord

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrAlreadyWaiting is returned when a second exchange waits on the same
// author in the same channel.
var ErrAlreadyWaiting = errors.New("already waiting for this author")

type waitKey struct {
	channelID string
	authorID  string
}

// collector hands the next message of an author in a channel to whoever is
// waiting for it.
type collector struct {
	mu      sync.Mutex
	waiters map[waitKey]chan string
}

func newCollector() *collector {
	return &collector{waiters: make(map[waitKey]chan string)}
}

// await blocks until offer delivers a message for the key, timeout passes or
// ctx ends. A timeout is reported as context.DeadlineExceeded.
func (c *collector) await(ctx context.Context, channelID, authorID string, timeout time.Duration) (string, error) {
	key := waitKey{channelID, authorID}
	ch := make(chan string, 1)

	c.mu.Lock()
	if _, busy := c.waiters[key]; busy {
		c.mu.Unlock()
		return "", ErrAlreadyWaiting
	}
	c.waiters[key] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.waiters[key] == ch {
			delete(c.waiters, key)
		}
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case content := <-ch:
		return content, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// offer delivers content to a waiter, if any, and reports whether one took it.
func (c *collector) offer(channelID, authorID, content string) bool {
	key := waitKey{channelID, authorID}

	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.waiters[key]
	if !ok {
		return false
	}
	delete(c.waiters, key)
	ch <- content
	return true
}
