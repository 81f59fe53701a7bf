package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PageResource is a named piece of content (text, media reference, color)
// bound into a page's layout slots. Order is significant.
type PageResource struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// PageEventTrigger binds a user action on the page to a list of properties
// interpreted by the view layer. Order is significant.
type PageEventTrigger struct {
	Action     string            `json:"action"`
	Properties map[string]string `json:"properties"`
}

// Page is a concrete content unit bound to a layout plus resources, triggers,
// locale and activation rules. Keyed on ID; upserts replace the full row.
//
// ActiveConditionUserVariable, when set, makes the page eligible as an index
// page only while the named session variable equals ActiveConditionEquals.
type Page struct {
	ID                          uuid.UUID          `json:"id"`
	Name                        string             `json:"name"`
	LayoutID                    uuid.UUID          `json:"layoutId"`
	ExhibitionID                uuid.UUID          `json:"exhibitionId"`
	ContentVersionID            uuid.UUID          `json:"contentVersionId"`
	ModifiedAt                  time.Time          `json:"modifiedAt"`
	Resources                   []PageResource     `json:"resources"`
	EventTriggers               []PageEventTrigger `json:"eventTriggers"`
	Language                    string             `json:"language"`
	OrderNumber                 int                `json:"orderNumber"`
	ActiveConditionUserVariable *string            `json:"activeConditionUserVariable,omitempty"`
	ActiveConditionEquals       *string            `json:"activeConditionEquals,omitempty"`
	EnterTransitions            json.RawMessage    `json:"enterTransitions,omitempty"`
	ExitTransitions             json.RawMessage    `json:"exitTransitions,omitempty"`
}

// ContentVersion groups related pages for batch fetching.
type ContentVersion struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Language string    `json:"language"`
}
