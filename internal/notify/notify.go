// Package notify delivers short operator messages, such as sync failures.
package notify

import (
	"context"
	"sync"
	"time"
)

// Notifier sends a plain-text message somewhere a human will see it.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Nop discards every message.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, string) error { return nil }

// Func adapts a function to Notifier.
type Func func(ctx context.Context, text string) error

// Notify implements Notifier.
func (f Func) Notify(ctx context.Context, text string) error { return f(ctx, text) }

// Throttled drops a message when the same text was sent less than
// window ago, so a failing schedule does not flood the chat.
type Throttled struct {
	next   Notifier
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewThrottled wraps next.
func NewThrottled(next Notifier, window time.Duration) *Throttled {
	return &Throttled{next: next, window: window, now: time.Now, last: make(map[string]time.Time)}
}

// Notify implements Notifier.
func (t *Throttled) Notify(ctx context.Context, text string) error {
	if !t.allow(text) {
		return nil
	}
	return t.next.Notify(ctx, text)
}

func (t *Throttled) allow(text string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if at, ok := t.last[text]; ok && now.Sub(at) < t.window {
		return false
	}
	for k, at := range t.last {
		if now.Sub(at) >= t.window {
			delete(t.last, k)
		}
	}
	t.last[text] = now
	return true
}
