// Package botsession keeps per-chat conversation state for the Telegram bot.
package botsession

import (
	"context"
	"time"
)

type State string

const (
	StateIdle             State = ""
	StateAwaitingHandle   State = "awaiting_handle"
	StateAwaitingPassword State = "awaiting_password"
)

// DefaultTTL bounds how long an unfinished login flow is remembered.
const DefaultTTL = 15 * time.Minute

type Session struct {
	State  State  `json:"state"`
	Handle string `json:"handle,omitempty"`
}

// Store is keyed by chat id. Get on an unknown or expired chat returns the
// idle session and no error.
type Store interface {
	Get(ctx context.Context, chatID string) (Session, error)
	Set(ctx context.Context, chatID string, session Session) error
	Clear(ctx context.Context, chatID string) error
}
