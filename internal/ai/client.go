package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrorPrefix marks a reply that carries a generation failure instead of model output.
const ErrorPrefix = "Error:"

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second

	fallbackErrorText = "I encountered an error while processing your request. Please check your API key and try again."
)

// IsErrorReply reports whether reply is a failed generation.
func IsErrorReply(reply string) bool {
	return strings.HasPrefix(reply, ErrorPrefix)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Option func(*Client)

func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if baseDelay >= 0 {
			c.baseDelay = baseDelay
		}
	}
}

func WithSleep(fn SleepFunc) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client wraps a Provider with bounded exponential-backoff retry. Generate
// never fails: exhausted retries come back as an ErrorPrefix reply.
type Client struct {
	provider    Provider
	maxAttempts int
	baseDelay   time.Duration
	sleep       SleepFunc
	log         *zap.Logger
}

func NewClient(provider Provider, opts ...Option) *Client {
	c := &Client{
		provider:    provider,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		sleep:       sleepContext,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("generation")
	return c
}

// Generate sends the last message with everything before it as history.
func (c *Client) Generate(ctx context.Context, messages []Message) string {
	if len(messages) == 0 {
		return ErrorReply(errors.New("no message to send"))
	}
	if c.provider == nil {
		return ErrorReply(errors.New("no ai provider configured"))
	}

	history := ToHistory(messages[:len(messages)-1])
	final := messages[len(messages)-1].Content

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		reply, err := c.provider.Chat(ctx, history, final)
		if err == nil {
			return reply
		}
		lastErr = err
		c.log.Warn("attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts),
			zap.Error(err),
		)

		if attempt == c.maxAttempts {
			break
		}
		// 2s, 4s, 8s... for the default base delay
		delay := c.baseDelay << (attempt - 1)
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	c.log.Error("generation failed", zap.Int("history_len", len(history)), zap.Error(lastErr))
	return ErrorReply(lastErr)
}

// ErrorReply formats err as a failed-generation reply.
func ErrorReply(err error) string {
	msg := ""
	if err != nil {
		msg = strings.TrimSpace(err.Error())
	}
	if msg == "" {
		msg = fallbackErrorText
	}
	return ErrorPrefix + " " + msg
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
