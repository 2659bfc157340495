package handler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// Middleware wraps a handler's run func (logging, recovery, metrics).
type Middleware func(h *Handler, next Func) Func

// Chain wraps h.Run with mws; the first middleware is the outermost.
func Chain(h *Handler, mws ...Middleware) Func {
	run := h.Run
	for i := len(mws) - 1; i >= 0; i-- {
		run = mws[i](h, run)
	}
	return run
}

// PanicError is returned when a handler panics.
type PanicError struct {
	Handler string
	Value   any
	Stack   []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler %s panicked: %v", e.Handler, e.Value)
}

// WithRecover turns a panic inside the handler into a *PanicError.
func WithRecover() Middleware {
	return func(h *Handler, next Func) Func {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if v := recover(); v != nil {
					err = &PanicError{Handler: h.String(), Value: v, Stack: debug.Stack()}
				}
			}()
			return next(ctx, req)
		}
	}
}

// WithLogger logs every invocation with its outcome and duration.
func WithLogger(log zerolog.Logger) Middleware {
	return func(h *Handler, next Func) Func {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)

			ev := log.Debug()
			if err != nil {
				ev = log.Error().Err(err)
			}
			ev.Str("handler", h.String()).
				Str("guild_id", req.Message.GuildID).
				Str("channel_id", req.Message.ChannelID).
				Str("user_id", req.Message.AuthorID).
				Dur("took", time.Since(start)).
				Msg("handler ran")
			return err
		}
	}
}
