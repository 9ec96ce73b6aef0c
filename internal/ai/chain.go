package ai

import (
	"context"
	"strings"
)

type completerChain struct {
	primary  Completer
	fallback Completer
}

// WithFallback tries primary first and routes to fallback whenever primary
// cannot produce non-blank content. A nil side collapses the chain.
func WithFallback(primary, fallback Completer) Completer {
	if isNil(primary) {
		return fallback
	}
	if isNil(fallback) {
		return primary
	}
	return &completerChain{primary: primary, fallback: fallback}
}

func (c *completerChain) Enabled() bool {
	return c != nil && (usable(c.primary) || usable(c.fallback))
}

func usable(c Completer) bool {
	return c != nil && c.Enabled()
}

func (c *completerChain) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c == nil {
		return "", ErrDisabled
	}
	var primaryErr error
	if usable(c.primary) {
		content, err := c.primary.Complete(ctx, req)
		if err == nil && strings.TrimSpace(content) != "" {
			return content, nil
		}
		primaryErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	if usable(c.fallback) {
		return c.fallback.Complete(ctx, req)
	}
	if primaryErr != nil {
		return "", primaryErr
	}
	return "", ErrDisabled
}

// isNil catches typed-nil *Client values passed as interfaces.
func isNil(c Completer) bool {
	if c == nil {
		return true
	}
	if client, ok := c.(*Client); ok && client == nil {
		return true
	}
	return false
}
