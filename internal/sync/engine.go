package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kiosk-sync/internal/client"
	"kiosk-sync/internal/errs"
	"kiosk-sync/internal/models"
	"kiosk-sync/internal/repository"
	"kiosk-sync/pkg/metrics"
)

// Engine reconciles the local store against the remote API. Full resyncs
// write layouts before any page referencing them so page resolution never
// observes a dangling layout id during an in-order read.
//
// All writes are full-row upserts, so re-running against unchanged remote
// data converges to identical rows and duplicate push deliveries are
// harmless.
type Engine struct {
	api      client.ExhibitionAPI
	layouts  *repository.LayoutRepository
	pages    *repository.PageRepository
	settings *repository.SettingsRepository
	logger   *zap.Logger
}

func NewEngine(
	api client.ExhibitionAPI,
	layouts *repository.LayoutRepository,
	pages *repository.PageRepository,
	settings *repository.SettingsRepository,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		api:      api,
		layouts:  layouts,
		pages:    pages,
		settings: settings,
		logger:   logger,
	}
}

// FullResync fetches all layouts for the exhibition and all pages visible
// to the device (device pages, the configured idle page, and pages pulled
// in via distinct content versions), upserts them, then removes local rows
// absent from the remote result. A remote failure aborts the resync;
// already-applied rows stay and the next scheduled run retries.
func (e *Engine) FullResync(ctx context.Context, exhibitionID, deviceID uuid.UUID) error {
	layouts, err := e.api.ListLayouts(ctx, exhibitionID)
	if err != nil {
		metrics.SyncFailures.WithLabelValues("full_resync").Inc()
		return fmt.Errorf("listing layouts: %w", err)
	}

	remoteLayouts := make(map[uuid.UUID]struct{}, len(layouts))
	for i := range layouts {
		if err := e.layouts.Upsert(ctx, &layouts[i]); err != nil {
			return err
		}
		remoteLayouts[layouts[i].ID] = struct{}{}
		metrics.EntitiesSynced.WithLabelValues("layout", "upsert").Inc()
	}

	device, err := e.api.FindDevice(ctx, exhibitionID, deviceID)
	if err != nil {
		metrics.SyncFailures.WithLabelValues("full_resync").Inc()
		return fmt.Errorf("finding device: %w", err)
	}

	pages, err := e.collectDevicePages(ctx, exhibitionID, deviceID, device)
	if err != nil {
		metrics.SyncFailures.WithLabelValues("full_resync").Inc()
		return err
	}

	remotePages := make(map[uuid.UUID]struct{}, len(pages))
	for i := range pages {
		if err := e.pages.Upsert(ctx, &pages[i]); err != nil {
			return err
		}
		remotePages[pages[i].ID] = struct{}{}
		metrics.EntitiesSynced.WithLabelValues("page", "upsert").Inc()
	}

	if device.IdlePageID != nil {
		if err := e.settings.Set(ctx, models.SettingIdlePageID, device.IdlePageID.String()); err != nil {
			return err
		}
	} else {
		if err := e.settings.Delete(ctx, models.SettingIdlePageID); err != nil {
			return err
		}
	}

	// Stale rows are removed only after every upsert has landed, so a page
	// never outlives the layout it references within one resync.
	if err := e.removeStalePages(ctx, remotePages); err != nil {
		return err
	}
	if err := e.removeStaleLayouts(ctx, remoteLayouts); err != nil {
		return err
	}

	e.logger.Info("Full resync completed",
		zap.Int("layouts", len(layouts)),
		zap.Int("pages", len(pages)),
	)
	return nil
}

// collectDevicePages gathers device-specific pages, the configured idle
// page and every page sharing a content version with them, de-duplicated
// by id.
func (e *Engine) collectDevicePages(ctx context.Context, exhibitionID, deviceID uuid.UUID, device *models.Device) ([]models.Page, error) {
	pages, err := e.api.ListPages(ctx, exhibitionID, &deviceID, nil)
	if err != nil {
		return nil, fmt.Errorf("listing device pages: %w", err)
	}

	seen := make(map[uuid.UUID]struct{}, len(pages))
	for _, p := range pages {
		seen[p.ID] = struct{}{}
	}

	if device.IdlePageID != nil {
		if _, ok := seen[*device.IdlePageID]; !ok {
			idle, err := e.api.FindPage(ctx, exhibitionID, *device.IdlePageID)
			if err != nil {
				if errors.Is(err, errs.ErrNotFound) {
					e.logger.Warn("Configured idle page missing remotely",
						zap.String("page_id", device.IdlePageID.String()),
					)
				} else {
					return nil, fmt.Errorf("finding idle page: %w", err)
				}
			} else {
				pages = append(pages, *idle)
				seen[idle.ID] = struct{}{}
			}
		}
	}

	versions := make(map[uuid.UUID]struct{})
	for _, p := range pages {
		versions[p.ContentVersionID] = struct{}{}
	}
	for versionID := range versions {
		versionID := versionID
		more, err := e.api.ListPages(ctx, exhibitionID, nil, &versionID)
		if err != nil {
			return nil, fmt.Errorf("listing content version pages: %w", err)
		}
		for _, p := range more {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			pages = append(pages, p)
		}
	}

	return pages, nil
}

func (e *Engine) removeStalePages(ctx context.Context, remote map[uuid.UUID]struct{}) error {
	localIDs, err := e.pages.ListIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range localIDs {
		if _, ok := remote[id]; ok {
			continue
		}
		if err := e.pages.Delete(ctx, id); err != nil {
			return err
		}
		metrics.EntitiesSynced.WithLabelValues("page", "delete").Inc()
	}
	return nil
}

func (e *Engine) removeStaleLayouts(ctx context.Context, remote map[uuid.UUID]struct{}) error {
	localIDs, err := e.layouts.ListIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range localIDs {
		if _, ok := remote[id]; ok {
			continue
		}
		if err := e.layouts.Delete(ctx, id); err != nil {
			return err
		}
		metrics.EntitiesSynced.WithLabelValues("layout", "delete").Inc()
	}
	return nil
}

// UpsertLayout refreshes one layout from the remote API. A remote 404
// translates to a local delete.
func (e *Engine) UpsertLayout(ctx context.Context, exhibitionID, layoutID uuid.UUID) error {
	layout, err := e.api.FindLayout(ctx, exhibitionID, layoutID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return e.RemoveLayout(ctx, layoutID)
		}
		metrics.SyncFailures.WithLabelValues("upsert_layout").Inc()
		return fmt.Errorf("finding layout: %w", err)
	}

	if err := e.layouts.Upsert(ctx, layout); err != nil {
		return err
	}
	metrics.EntitiesSynced.WithLabelValues("layout", "upsert").Inc()
	return nil
}

// UpsertPage refreshes one page from the remote API. The page's layout is
// fetched first if it is not cached locally, and its content version is
// resolved to catch pages orphaned by a deleted version. A remote 404
// translates to a local delete.
func (e *Engine) UpsertPage(ctx context.Context, exhibitionID, pageID uuid.UUID) error {
	page, err := e.api.FindPage(ctx, exhibitionID, pageID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return e.RemovePage(ctx, pageID)
		}
		metrics.SyncFailures.WithLabelValues("upsert_page").Inc()
		return fmt.Errorf("finding page: %w", err)
	}

	if _, err := e.api.FindContentVersion(ctx, exhibitionID, page.ContentVersionID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			e.logger.Warn("Page references a deleted content version",
				zap.String("page_id", pageID.String()),
				zap.String("content_version_id", page.ContentVersionID.String()),
			)
			return e.RemovePage(ctx, pageID)
		}
		metrics.SyncFailures.WithLabelValues("upsert_page").Inc()
		return fmt.Errorf("finding content version: %w", err)
	}

	local, err := e.layouts.FindByID(ctx, page.LayoutID)
	if err != nil {
		return err
	}
	if local == nil {
		// Layout first, page second: the dependency order holds even for
		// single-entity push updates.
		if err := e.UpsertLayout(ctx, exhibitionID, page.LayoutID); err != nil {
			return fmt.Errorf("fetching dependent layout: %w", err)
		}
	}

	if err := e.pages.Upsert(ctx, page); err != nil {
		return err
	}
	metrics.EntitiesSynced.WithLabelValues("page", "upsert").Inc()
	return nil
}

// RemoveLayout deletes the local row. Missing ids are a no-op.
func (e *Engine) RemoveLayout(ctx context.Context, layoutID uuid.UUID) error {
	if err := e.layouts.Delete(ctx, layoutID); err != nil {
		return err
	}
	metrics.EntitiesSynced.WithLabelValues("layout", "delete").Inc()
	return nil
}

// RemovePage deletes the local row. Missing ids are a no-op.
func (e *Engine) RemovePage(ctx context.Context, pageID uuid.UUID) error {
	if err := e.pages.Delete(ctx, pageID); err != nil {
		return err
	}
	metrics.EntitiesSynced.WithLabelValues("page", "delete").Inc()
	return nil
}
