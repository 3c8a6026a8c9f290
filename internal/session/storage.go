// Package session stores conversation state per Telegram chat. Telegram
// clients cannot carry the session payload themselves, so the bot persists it
// between turns.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/Proton-105/fitcoach-bot/internal/conversation"
	"github.com/Proton-105/fitcoach-bot/internal/plan"
)

// ErrNotFound indicates that no record exists for the chat.
var ErrNotFound = errors.New("session not found")

// Record is the stored state of one chat.
type Record struct {
	ChatID  int64                `json:"chat_id"`
	Session conversation.Session `json:"session"`
	// LastPlan is kept so inline day pagination can re-render the plan.
	LastPlan  *plan.Document `json:"last_plan,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Storage defines the persistence contract for chat sessions.
type Storage interface {
	// Get returns the record for chatID or ErrNotFound.
	Get(ctx context.Context, chatID int64) (*Record, error)
	// Set saves rec and stamps UpdatedAt.
	Set(ctx context.Context, rec *Record) error
	// Clear removes the record for chatID.
	Clear(ctx context.Context, chatID int64) error
	// All returns every stored record.
	All(ctx context.Context) ([]*Record, error)
}

// Load returns the stored record for chatID, or a fresh one when none exists.
func Load(ctx context.Context, storage Storage, chatID int64) (*Record, error) {
	rec, err := storage.Get(ctx, chatID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Record{ChatID: chatID, Session: conversation.NewSession()}, nil
		}
		return nil, err
	}
	return rec, nil
}
