// Package domain contains core domain types for the enrollment chat widget.
package domain

import (
	"fmt"
	"time"

	"github.com/containerd/errdefs"
)

// Role identifies who produced a turn.
type Role string

const (
	// RoleUser marks a turn typed by the visitor.
	RoleUser Role = "user"
	// RoleAssistant marks a generated reply.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one message in the conversation. Turns are values and are never mutated after creation.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// NewTurn creates a turn stamped with the current time.
func NewTurn(role Role, text string) (Turn, error) {
	if !role.Valid() {
		return Turn{}, fmt.Errorf("unknown role %q: %w", role, errdefs.ErrInvalidArgument)
	}
	if text == "" {
		return Turn{}, fmt.Errorf("turn text is empty: %w", errdefs.ErrInvalidArgument)
	}
	return Turn{Role: role, Text: text, At: time.Now().UTC()}, nil
}

// Transcript is the ordered history of a session. Insertion order is display order.
type Transcript struct {
	turns []Turn
}

// Append adds a turn at the end of the transcript.
func (t *Transcript) Append(turn Turn) {
	t.turns = append(t.turns, turn)
}

// Turns returns a copy of the turns in order.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}
