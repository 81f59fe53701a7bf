package models

import "github.com/google/uuid"

// EntityEvent is the envelope published for page, layout and RFID antenna
// create/update/delete notifications.
type EntityEvent struct {
	ID           uuid.UUID `json:"id"`
	ExhibitionID uuid.UUID `json:"exhibitionId"`
}

// DeviceGroupEvent is published to trigger an action on every device in a
// device group, e.g. starting a shared visitor session.
type DeviceGroupEvent struct {
	GroupID      uuid.UUID `json:"groupId"`
	ExhibitionID uuid.UUID `json:"exhibitionId"`
	SessionID    uuid.UUID `json:"sessionId"`
	Event        string    `json:"event"`
}

// DeviceStatus is the heartbeat payload published by this device.
type DeviceStatus struct {
	DeviceID uuid.UUID `json:"deviceId"`
	Status   string    `json:"status"`
	Version  string    `json:"version"`
}
