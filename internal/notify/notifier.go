// Package notify delivers out-of-band task failure notifications. The
// task document remains the ledger of truth; notifications are a
// convenience on top, and delivery failures are never fatal.
package notify

import (
	"context"
)

// Notifier sends a short notification message.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// NoOpNotifier discards everything.
type NoOpNotifier struct{}

func (NoOpNotifier) Send(ctx context.Context, title, body string) error { return nil }
