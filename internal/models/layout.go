package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ScreenOrientation of a layout.
type ScreenOrientation string

const (
	OrientationLandscape ScreenOrientation = "LANDSCAPE"
	OrientationPortrait  ScreenOrientation = "PORTRAIT"
	OrientationForced    ScreenOrientation = "FORCED_PORTRAIT"
)

// Layout is a reusable widget-tree template referenced by one or more pages.
// A sync always replaces the full row, keyed on ID.
type Layout struct {
	ID             uuid.UUID         `json:"id"`
	Name           string            `json:"name"`
	Data           json.RawMessage   `json:"data"`
	ExhibitionID   uuid.UUID         `json:"exhibitionId"`
	CreatorID      uuid.UUID         `json:"creatorId"`
	LastModifierID uuid.UUID         `json:"lastModifierId"`
	CreatedAt      time.Time         `json:"createdAt"`
	ModifiedAt     time.Time         `json:"modifiedAt"`
	Orientation    ScreenOrientation `json:"screenOrientation"`
}
