// Package transport is the outbound messaging seam used by the notifier.
package transport

import "context"

// Target addresses one chat (optionally a forum topic).
type Target struct {
	ChatID   int64
	ThreadID int
}

// Notification is one outbound operator message.
type Notification struct {
	Channel  string
	Priority int // 0 low .. 10 high
	Target   Target
	Text     string
}

// Sender delivers plain-text messages.
type Sender interface {
	Name() string
	SendText(ctx context.Context, to Target, text string) error
}
