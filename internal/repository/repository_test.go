package repository_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"kiosk-sync/internal/database"
	"kiosk-sync/internal/models"
)

// testDB opens a migrated in-memory store.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Prepare(db, false))
	return db
}

func testLayout(id uuid.UUID) *models.Layout {
	return &models.Layout{
		ID:             id,
		Name:           "basic layout",
		Data:           []byte(`{"widget":"FrameLayout","children":[]}`),
		ExhibitionID:   uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		CreatorID:      uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		LastModifierID: uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		CreatedAt:      time.UnixMilli(1700000000000).UTC(),
		ModifiedAt:     time.UnixMilli(1700000100000).UTC(),
		Orientation:    models.OrientationLandscape,
	}
}

func testPage(id, layoutID uuid.UUID, language string, orderNumber int) *models.Page {
	return &models.Page{
		ID:               id,
		Name:             "page " + id.String()[:8],
		LayoutID:         layoutID,
		ExhibitionID:     uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		ContentVersionID: uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		ModifiedAt:       time.UnixMilli(1700000200000).UTC(),
		Resources: []models.PageResource{
			{ID: "title", Type: "text", Data: "Welcome"},
			{ID: "background", Type: "image", Data: "https://cdn.example.com/bg.png"},
		},
		EventTriggers: []models.PageEventTrigger{
			{Action: "navigate", Properties: map[string]string{"target": "next"}},
		},
		Language:    language,
		OrderNumber: orderNumber,
	}
}

func strPtr(s string) *string {
	return &s
}
