package models

import (
	"time"

	"github.com/google/uuid"
)

// VisitorSessionState of a remote visitor session.
type VisitorSessionState string

const (
	SessionActive VisitorSessionState = "ACTIVE"
	SessionPaused VisitorSessionState = "PAUSED"
	SessionEnded  VisitorSessionState = "ENDED"
)

// VisitorSession is the live state of a visitor's presence: language,
// named variables, associated visitor ids and RFID tags.
//
// Remote updates merge last-writer-wins by ModifiedAt.
type VisitorSession struct {
	ID         uuid.UUID           `json:"id"`
	State      VisitorSessionState `json:"state"`
	Language   string              `json:"language"`
	VisitorIDs []uuid.UUID         `json:"visitorIds"`
	Variables  map[string]string   `json:"variables"`
	ExpiresAt  time.Time           `json:"expiresAt"`
	ModifiedAt time.Time           `json:"modifiedAt"`
	Tags       []string            `json:"tags"`
}

// Clone returns a deep copy so listeners can hold the snapshot without
// racing against later mutations.
func (s *VisitorSession) Clone() *VisitorSession {
	if s == nil {
		return nil
	}
	c := *s
	c.VisitorIDs = append([]uuid.UUID(nil), s.VisitorIDs...)
	c.Tags = append([]string(nil), s.Tags...)
	c.Variables = make(map[string]string, len(s.Variables))
	for k, v := range s.Variables {
		c.Variables[k] = v
	}
	return &c
}

// Visitor ties an RFID tag to a visitor identity.
type Visitor struct {
	ID       uuid.UUID `json:"id"`
	TagID    string    `json:"tagId"`
	Language string    `json:"language"`
}
