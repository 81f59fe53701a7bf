package models

import "github.com/google/uuid"

// PendingMutation is a durable outbox record for a "set user value"
// operation that has not yet been acknowledged by the remote API.
//
// Drain order is priority DESC, time ASC: highest priority first, oldest
// first within a priority band.
type PendingMutation struct {
	ID        int64     `json:"id"`
	SessionID uuid.UUID `json:"sessionId"`
	Time      int64     `json:"time"` // epoch milliseconds at enqueue
	Priority  int64     `json:"priority"`
	Name      string    `json:"name"`
	Value     string    `json:"value"`
}
