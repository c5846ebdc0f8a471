package dialogue

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout bounds every Complete call on b to d. A call that overruns is
// abandoned and reported as an error; the underlying request may still
// finish in the background. A non-positive d returns b unchanged.
func WithTimeout(b Backend, d time.Duration) Backend {
	if d <= 0 {
		return b
	}
	return &timeoutBackend{next: b, timeout: d}
}

type timeoutBackend struct {
	next    Backend
	timeout time.Duration
}

type completion struct {
	text string
	err  error
}

func (t *timeoutBackend) Complete(ctx context.Context, system string, history []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan completion, 1)
	go func() {
		text, err := t.next.Complete(ctx, system, history)
		done <- completion{text: text, err: err}
	}()

	select {
	case c := <-done:
		return c.text, c.err
	case <-ctx.Done():
		return "", fmt.Errorf("no reply within %s: %w", t.timeout, ctx.Err())
	}
}
