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

// SettingsRepository stores device identity as name/value rows. One row per
// name; a missing row means the setting is unset.
type SettingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSettingsRepository(db *sql.DB, logger *zap.Logger) *SettingsRepository {
	return &SettingsRepository{db: db, logger: logger}
}

// Get returns the value for name. found is false when the setting is unset.
func (r *SettingsRepository) Get(ctx context.Context, name models.SettingName) (value string, found bool, err error) {
	err = r.db.QueryRowContext(ctx,
		"SELECT value FROM device_settings WHERE name = ?", string(name),
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, errs.Storage("settings.Get", err)
	}
	return value, true, nil
}

// GetUUID returns the value for name parsed as a UUID. Unset or unparseable
// values report found = false.
func (r *SettingsRepository) GetUUID(ctx context.Context, name models.SettingName) (uuid.UUID, bool, error) {
	value, found, err := r.Get(ctx, name)
	if err != nil || !found {
		return uuid.Nil, false, err
	}
	id, parseErr := uuid.Parse(value)
	if parseErr != nil {
		r.logger.Warn("Device setting is not a valid UUID",
			zap.String("name", string(name)),
			zap.String("value", value),
		)
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

// Set creates or replaces the row for name.
func (r *SettingsRepository) Set(ctx context.Context, name models.SettingName, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_settings (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value`,
		string(name), value,
	)
	if err != nil {
		return errs.Storage("settings.Set", err)
	}
	return nil
}

// Delete removes the row for name. Missing rows are a no-op.
func (r *SettingsRepository) Delete(ctx context.Context, name models.SettingName) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM device_settings WHERE name = ?", string(name),
	)
	if err != nil {
		return errs.Storage("settings.Delete", err)
	}
	return nil
}
