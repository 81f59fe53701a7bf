package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kiosk-sync/internal/errs"
	"kiosk-sync/internal/models"
)

// LayoutRepository persists layouts keyed on id. Every write replaces the
// full row, which keeps upserts idempotent under duplicate push delivery.
type LayoutRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewLayoutRepository(db *sql.DB, logger *zap.Logger) *LayoutRepository {
	return &LayoutRepository{db: db, logger: logger}
}

func (r *LayoutRepository) Upsert(ctx context.Context, layout *models.Layout) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO layouts (
			id, name, data, exhibition_id, creator_id, last_modifier_id,
			created_at, modified_at, orientation
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			data = excluded.data,
			exhibition_id = excluded.exhibition_id,
			creator_id = excluded.creator_id,
			last_modifier_id = excluded.last_modifier_id,
			created_at = excluded.created_at,
			modified_at = excluded.modified_at,
			orientation = excluded.orientation`,
		layout.ID.String(),
		layout.Name,
		string(layout.Data),
		layout.ExhibitionID.String(),
		layout.CreatorID.String(),
		layout.LastModifierID.String(),
		layout.CreatedAt.UnixMilli(),
		layout.ModifiedAt.UnixMilli(),
		string(layout.Orientation),
	)
	if err != nil {
		return errs.Storage("layouts.Upsert", err)
	}
	return nil
}

// FindByID returns nil when the layout is not stored locally.
func (r *LayoutRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Layout, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, data, exhibition_id, creator_id, last_modifier_id,
		       created_at, modified_at, orientation
		FROM layouts WHERE id = ?`, id.String(),
	)

	layout, err := scanLayout(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.Storage("layouts.FindByID", err)
	}
	return layout, nil
}

func (r *LayoutRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM layouts")
	if err != nil {
		return nil, errs.Storage("layouts.ListIDs", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errs.Storage("layouts.ListIDs", err)
		}
		id, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage("layouts.ListIDs", err)
	}
	return ids, nil
}

// Delete removes the row for id. Missing rows are a no-op.
func (r *LayoutRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM layouts WHERE id = ?", id.String())
	if err != nil {
		return errs.Storage("layouts.Delete", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLayout(row rowScanner) (*models.Layout, error) {
	var (
		layout                                      models.Layout
		id, exhibitionID, creatorID, lastModifierID string
		data, orientation                           string
		createdAt, modifiedAt                       int64
	)
	err := row.Scan(&id, &layout.Name, &data, &exhibitionID, &creatorID,
		&lastModifierID, &createdAt, &modifiedAt, &orientation)
	if err != nil {
		return nil, err
	}

	layout.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	layout.ExhibitionID, _ = uuid.Parse(exhibitionID)
	layout.CreatorID, _ = uuid.Parse(creatorID)
	layout.LastModifierID, _ = uuid.Parse(lastModifierID)
	layout.Data = []byte(data)
	layout.CreatedAt = time.UnixMilli(createdAt).UTC()
	layout.ModifiedAt = time.UnixMilli(modifiedAt).UTC()
	layout.Orientation = models.ScreenOrientation(orientation)
	return &layout, nil
}
