package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kiosk-sync/internal/errs"
	"kiosk-sync/internal/models"
)

// MutationRepository is the durable outbox for pending user-value updates.
// Records survive process restarts and are deleted only after the remote
// API has acknowledged them.
type MutationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewMutationRepository(db *sql.DB, logger *zap.Logger) *MutationRepository {
	return &MutationRepository{db: db, logger: logger}
}

// Insert appends a record and returns its assigned id.
func (r *MutationRepository) Insert(ctx context.Context, m *models.PendingMutation) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_mutations (session_id, time, priority, name, value)
		VALUES (?, ?, ?, ?, ?)`,
		m.SessionID.String(), m.Time, m.Priority, m.Name, m.Value,
	)
	if err != nil {
		return 0, errs.Storage("mutations.Insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.Storage("mutations.Insert", err)
	}
	return id, nil
}

// Next returns the record to drain next: highest priority first, oldest
// first within a priority band. Returns nil when the outbox is empty.
func (r *MutationRepository) Next(ctx context.Context) (*models.PendingMutation, error) {
	var (
		m         models.PendingMutation
		sessionID string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, time, priority, name, value
		FROM pending_mutations
		ORDER BY priority DESC, time ASC
		LIMIT 1`,
	).Scan(&m.ID, &sessionID, &m.Time, &m.Priority, &m.Name, &m.Value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.Storage("mutations.Next", err)
	}

	m.SessionID, err = uuid.Parse(sessionID)
	if err != nil {
		return nil, errs.Storage("mutations.Next", err)
	}
	return &m, nil
}

// Delete removes an acknowledged record.
func (r *MutationRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM pending_mutations WHERE id = ?", id)
	if err != nil {
		return errs.Storage("mutations.Delete", err)
	}
	return nil
}

// Count returns the current outbox depth.
func (r *MutationRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending_mutations").Scan(&count)
	if err != nil {
		return 0, errs.Storage("mutations.Count", err)
	}
	return count, nil
}
