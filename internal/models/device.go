package models

import "github.com/google/uuid"

// Device is the remote record for one physical floor device.
type Device struct {
	ID           uuid.UUID  `json:"id"`
	ExhibitionID uuid.UUID  `json:"exhibitionId"`
	GroupID      uuid.UUID  `json:"groupId"`
	Name         string     `json:"name"`
	IdlePageID   *uuid.UUID `json:"idlePageId,omitempty"`
}

// RfidAntenna maps a physical tag reader to an exhibition room.
type RfidAntenna struct {
	ID            uuid.UUID `json:"id"`
	ExhibitionID  uuid.UUID `json:"exhibitionId"`
	RoomID        uuid.UUID `json:"roomId"`
	GroupID       uuid.UUID `json:"groupId"`
	Name          string    `json:"name"`
	ReaderID      string    `json:"readerId"`
	AntennaNumber int       `json:"antennaNumber"`
}
