package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kiosk-sync/internal/errs"
	"kiosk-sync/internal/models"
)

// PageRepository persists pages keyed on id. Resources and event triggers
// are stored as JSON columns; order within them is preserved.
type PageRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPageRepository(db *sql.DB, logger *zap.Logger) *PageRepository {
	return &PageRepository{db: db, logger: logger}
}

func (r *PageRepository) Upsert(ctx context.Context, page *models.Page) error {
	resources, err := json.Marshal(page.Resources)
	if err != nil {
		return errs.Storage("pages.Upsert", fmt.Errorf("encoding resources: %w", err))
	}
	triggers, err := json.Marshal(page.EventTriggers)
	if err != nil {
		return errs.Storage("pages.Upsert", fmt.Errorf("encoding event triggers: %w", err))
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pages (
			id, name, layout_id, exhibition_id, content_version_id, modified_at,
			resources, event_triggers, language, order_number,
			active_condition_user_variable, active_condition_equals,
			enter_transitions, exit_transitions
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			layout_id = excluded.layout_id,
			exhibition_id = excluded.exhibition_id,
			content_version_id = excluded.content_version_id,
			modified_at = excluded.modified_at,
			resources = excluded.resources,
			event_triggers = excluded.event_triggers,
			language = excluded.language,
			order_number = excluded.order_number,
			active_condition_user_variable = excluded.active_condition_user_variable,
			active_condition_equals = excluded.active_condition_equals,
			enter_transitions = excluded.enter_transitions,
			exit_transitions = excluded.exit_transitions`,
		page.ID.String(),
		page.Name,
		page.LayoutID.String(),
		page.ExhibitionID.String(),
		page.ContentVersionID.String(),
		page.ModifiedAt.UnixMilli(),
		string(resources),
		string(triggers),
		page.Language,
		page.OrderNumber,
		page.ActiveConditionUserVariable,
		page.ActiveConditionEquals,
		nullableJSON(page.EnterTransitions),
		nullableJSON(page.ExitTransitions),
	)
	if err != nil {
		return errs.Storage("pages.Upsert", err)
	}
	return nil
}

// FindByID returns nil when the page is not stored locally.
func (r *PageRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Page, error) {
	row := r.db.QueryRowContext(ctx, selectPage+" WHERE id = ?", id.String())

	page, err := scanPage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.Storage("pages.FindByID", err)
	}
	return page, nil
}

// ListByLanguage returns all pages for a language ordered by order_number.
func (r *PageRepository) ListByLanguage(ctx context.Context, language string) ([]models.Page, error) {
	rows, err := r.db.QueryContext(ctx,
		selectPage+" WHERE language = ? ORDER BY order_number ASC", language,
	)
	if err != nil {
		return nil, errs.Storage("pages.ListByLanguage", err)
	}
	defer rows.Close()

	var pages []models.Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, errs.Storage("pages.ListByLanguage", err)
		}
		pages = append(pages, *page)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage("pages.ListByLanguage", err)
	}
	return pages, nil
}

func (r *PageRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM pages")
	if err != nil {
		return nil, errs.Storage("pages.ListIDs", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errs.Storage("pages.ListIDs", err)
		}
		id, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage("pages.ListIDs", err)
	}
	return ids, nil
}

// Delete removes the row for id. Missing rows are a no-op.
func (r *PageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM pages WHERE id = ?", id.String())
	if err != nil {
		return errs.Storage("pages.Delete", err)
	}
	return nil
}

const selectPage = `
	SELECT id, name, layout_id, exhibition_id, content_version_id, modified_at,
	       resources, event_triggers, language, order_number,
	       active_condition_user_variable, active_condition_equals,
	       enter_transitions, exit_transitions
	FROM pages`

func scanPage(row rowScanner) (*models.Page, error) {
	var (
		page                                    models.Page
		id, layoutID, exhibitionID, cvID        string
		resources, triggers                     string
		modifiedAt                              int64
		enterTransitions, exitTransitions       sql.NullString
	)
	err := row.Scan(&id, &page.Name, &layoutID, &exhibitionID, &cvID,
		&modifiedAt, &resources, &triggers, &page.Language, &page.OrderNumber,
		&page.ActiveConditionUserVariable, &page.ActiveConditionEquals,
		&enterTransitions, &exitTransitions)
	if err != nil {
		return nil, err
	}

	page.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	page.LayoutID, _ = uuid.Parse(layoutID)
	page.ExhibitionID, _ = uuid.Parse(exhibitionID)
	page.ContentVersionID, _ = uuid.Parse(cvID)
	page.ModifiedAt = time.UnixMilli(modifiedAt).UTC()

	if err := json.Unmarshal([]byte(resources), &page.Resources); err != nil {
		return nil, fmt.Errorf("decoding resources: %w", err)
	}
	if err := json.Unmarshal([]byte(triggers), &page.EventTriggers); err != nil {
		return nil, fmt.Errorf("decoding event triggers: %w", err)
	}
	if enterTransitions.Valid {
		page.EnterTransitions = []byte(enterTransitions.String)
	}
	if exitTransitions.Valid {
		page.ExitTransitions = []byte(exitTransitions.String)
	}
	return &page, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
