package resolver

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kiosk-sync/internal/models"
	"kiosk-sync/internal/repository"
)

// ResolvedPage is the (page, layout) pair handed to the view-construction
// collaborator. A page resolves only when its layout is cached locally.
type ResolvedPage struct {
	Page   *models.Page
	Layout *models.Layout
}

// PageResolver selects the single applicable page for the current display
// state. Every resolution failure degrades to a nil result; the caller
// decides the fallback view.
type PageResolver struct {
	pages    *repository.PageRepository
	layouts  *repository.LayoutRepository
	settings *repository.SettingsRepository
	logger   *zap.Logger
}

func NewPageResolver(
	pages *repository.PageRepository,
	layouts *repository.LayoutRepository,
	settings *repository.SettingsRepository,
	logger *zap.Logger,
) *PageResolver {
	return &PageResolver{
		pages:    pages,
		layouts:  layouts,
		settings: settings,
		logger:   logger,
	}
}

// IdlePage returns the device's configured idle page, or nil when none is
// configured or the page is not cached.
func (r *PageResolver) IdlePage(ctx context.Context) (*ResolvedPage, error) {
	pageID, found, err := r.settings.GetUUID(ctx, models.SettingIdlePageID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return r.resolve(ctx, pageID)
}

// IndexPage selects the landing page for a freshly started session.
// Candidates are the cached pages for language; a page with an activation
// condition is eligible only while the named session variable equals the
// expected value, an unconditional page always is. Conditional pages win
// over unconditional ones, ties break by order number ascending. Returns
// nil when no candidate matches.
func (r *PageResolver) IndexPage(ctx context.Context, language string, session *models.VisitorSession) (*ResolvedPage, error) {
	candidates, err := r.pages.ListByLanguage(ctx, language)
	if err != nil {
		return nil, err
	}

	// Candidates arrive ordered by order number; a single stable pass per
	// band keeps that ordering within conditional and unconditional pages.
	for _, band := range []bool{true, false} {
		for i := range candidates {
			page := &candidates[i]
			conditional := page.ActiveConditionUserVariable != nil
			if conditional != band {
				continue
			}
			if conditional && !conditionHolds(page, session) {
				continue
			}
			resolved, err := r.resolve(ctx, page.ID)
			if err != nil {
				return nil, err
			}
			if resolved == nil {
				continue
			}
			return resolved, nil
		}
	}

	return nil, nil
}

// NavigationTarget validates an explicit navigation: the page must exist
// locally together with its layout.
func (r *PageResolver) NavigationTarget(ctx context.Context, pageID uuid.UUID) (*ResolvedPage, error) {
	return r.resolve(ctx, pageID)
}

// resolve loads the page and its layout. A missing layout is logged and
// reported as an unresolved page rather than an error.
func (r *PageResolver) resolve(ctx context.Context, pageID uuid.UUID) (*ResolvedPage, error) {
	page, err := r.pages.FindByID(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, nil
	}

	layout, err := r.layouts.FindByID(ctx, page.LayoutID)
	if err != nil {
		return nil, err
	}
	if layout == nil {
		r.logger.Warn("Page references a layout that is not cached, skipping",
			zap.String("page_id", page.ID.String()),
			zap.String("layout_id", page.LayoutID.String()),
		)
		return nil, nil
	}

	return &ResolvedPage{Page: page, Layout: layout}, nil
}

func conditionHolds(page *models.Page, session *models.VisitorSession) bool {
	if session == nil || page.ActiveConditionUserVariable == nil {
		return false
	}
	value, ok := session.Variables[*page.ActiveConditionUserVariable]
	if !ok {
		return false
	}
	expected := ""
	if page.ActiveConditionEquals != nil {
		expected = *page.ActiveConditionEquals
	}
	return value == expected
}
