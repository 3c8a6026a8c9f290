// Package handoff records requests to talk to a human trainer.
package handoff

import (
	"context"
	"time"

	validator "github.com/go-playground/validator/v10"
)

const (
	ChannelHTTP     = "http"
	ChannelTelegram = "telegram"
)

// Request is one "connect me to a trainer" event.
type Request struct {
	ID         int64     `json:"id,omitempty"`
	Channel    string    `json:"channel" validate:"required,oneof=http telegram"`
	SessionRef string    `json:"session_ref" validate:"required,max=128"`
	Language   string    `json:"language" validate:"omitempty,oneof=en ml"`
	Flow       string    `json:"flow" validate:"omitempty,oneof=weight_loss weight_gain workouts diet"`
	Utterance  string    `json:"utterance" validate:"required,max=4096"`
	CreatedAt  time.Time `json:"created_at"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the request before it is persisted.
func (r Request) Validate() error {
	return validate.Struct(r)
}

// Recorder accepts handoff requests. Implementations may persist synchronously
// or hand the request to a background queue.
type Recorder interface {
	Record(ctx context.Context, req Request) error
}
