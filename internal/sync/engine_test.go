package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kiosk-sync/internal/database"
	"kiosk-sync/internal/errs"
	"kiosk-sync/internal/models"
	"kiosk-sync/internal/repository"
	"kiosk-sync/internal/sync"
)

var (
	exhibitionID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	deviceID     = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	versionID    = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

// fakeAPI serves canned exhibition content. Unset ids report ErrNotFound the
// way the HTTP client maps a 404.
type fakeAPI struct {
	layouts     map[uuid.UUID]models.Layout
	pages       map[uuid.UUID]models.Page
	devicePages []uuid.UUID
	device      *models.Device
	versions    map[uuid.UUID]models.ContentVersion
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		layouts:  make(map[uuid.UUID]models.Layout),
		pages:    make(map[uuid.UUID]models.Page),
		versions: make(map[uuid.UUID]models.ContentVersion),
	}
}

func (f *fakeAPI) ListLayouts(ctx context.Context, _ uuid.UUID) ([]models.Layout, error) {
	out := make([]models.Layout, 0, len(f.layouts))
	for _, l := range f.layouts {
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeAPI) FindLayout(ctx context.Context, _, layoutID uuid.UUID) (*models.Layout, error) {
	l, ok := f.layouts[layoutID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &l, nil
}

func (f *fakeAPI) ListPages(ctx context.Context, _ uuid.UUID, deviceID, contentVersionID *uuid.UUID) ([]models.Page, error) {
	var out []models.Page
	if deviceID != nil {
		for _, id := range f.devicePages {
			out = append(out, f.pages[id])
		}
		return out, nil
	}
	if contentVersionID != nil {
		for _, p := range f.pages {
			if p.ContentVersionID == *contentVersionID {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (f *fakeAPI) FindPage(ctx context.Context, _, pageID uuid.UUID) (*models.Page, error) {
	p, ok := f.pages[pageID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &p, nil
}

func (f *fakeAPI) FindContentVersion(ctx context.Context, _, contentVersionID uuid.UUID) (*models.ContentVersion, error) {
	v, ok := f.versions[contentVersionID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &v, nil
}

func (f *fakeAPI) FindDevice(ctx context.Context, _, _ uuid.UUID) (*models.Device, error) {
	if f.device == nil {
		return nil, errs.ErrNotFound
	}
	return f.device, nil
}

func (f *fakeAPI) CreateVisitorSession(ctx context.Context, _ uuid.UUID, _ *models.VisitorSession) (*models.VisitorSession, error) {
	return nil, errs.ErrNotFound
}

func (f *fakeAPI) UpdateVisitorSession(ctx context.Context, _ uuid.UUID, _ *models.VisitorSession) (*models.VisitorSession, error) {
	return nil, errs.ErrNotFound
}

func (f *fakeAPI) FindVisitorSession(ctx context.Context, _, _ uuid.UUID) (*models.VisitorSession, error) {
	return nil, errs.ErrNotFound
}

func (f *fakeAPI) ListVisitorSessions(ctx context.Context, _ uuid.UUID, _ *time.Time) ([]models.VisitorSession, error) {
	return nil, nil
}

func (f *fakeAPI) ListVisitors(ctx context.Context, _ uuid.UUID) ([]models.Visitor, error) {
	return nil, nil
}

func (f *fakeAPI) ListRfidAntennas(ctx context.Context, _ uuid.UUID) ([]models.RfidAntenna, error) {
	return nil, nil
}

type testStore struct {
	layouts  *repository.LayoutRepository
	pages    *repository.PageRepository
	settings *repository.SettingsRepository
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()

	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Prepare(db, false))

	logger := zap.NewNop()
	return &testStore{
		layouts:  repository.NewLayoutRepository(db, logger),
		pages:    repository.NewPageRepository(db, logger),
		settings: repository.NewSettingsRepository(db, logger),
	}
}

func newEngine(api *fakeAPI, store *testStore) *sync.Engine {
	return sync.NewEngine(api, store.layouts, store.pages, store.settings, zap.NewNop())
}

func remoteLayout(id uuid.UUID) models.Layout {
	return models.Layout{
		ID:           id,
		Name:         "remote layout",
		Data:         []byte(`{"widget":"FrameLayout"}`),
		ExhibitionID: exhibitionID,
		ModifiedAt:   time.UnixMilli(1700000000000).UTC(),
		Orientation:  models.OrientationLandscape,
	}
}

func remotePage(id, layoutID uuid.UUID, orderNumber int) models.Page {
	return models.Page{
		ID:               id,
		Name:             "remote page",
		LayoutID:         layoutID,
		ExhibitionID:     exhibitionID,
		ContentVersionID: versionID,
		ModifiedAt:       time.UnixMilli(1700000100000).UTC(),
		Resources:        []models.PageResource{{ID: "title", Type: "text", Data: "hello"}},
		Language:         "fi",
		OrderNumber:      orderNumber,
	}
}

func TestFullResync_StoresLayoutsAndDevicePages(t *testing.T) {
	api := newFakeAPI()
	store := newTestStore(t)

	layoutID := uuid.New()
	pageID := uuid.New()
	api.layouts[layoutID] = remoteLayout(layoutID)
	api.pages[pageID] = remotePage(pageID, layoutID, 0)
	api.devicePages = []uuid.UUID{pageID}
	api.device = &models.Device{ID: deviceID, ExhibitionID: exhibitionID}

	engine := newEngine(api, store)
	require.NoError(t, engine.FullResync(context.Background(), exhibitionID, deviceID))

	layout, err := store.layouts.FindByID(context.Background(), layoutID)
	require.NoError(t, err)
	require.NotNil(t, layout)
	assert.Equal(t, "remote layout", layout.Name)

	page, err := store.pages.FindByID(context.Background(), pageID)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, layoutID, page.LayoutID)
}

func TestFullResync_IncludesIdlePageOutsideDeviceSet(t *testing.T) {
	api := newFakeAPI()
	store := newTestStore(t)

	layoutID := uuid.New()
	idlePageID := uuid.New()
	api.layouts[layoutID] = remoteLayout(layoutID)
	idle := remotePage(idlePageID, layoutID, 0)
	idle.ContentVersionID = uuid.New()
	api.pages[idlePageID] = idle
	api.device = &models.Device{ID: deviceID, ExhibitionID: exhibitionID, IdlePageID: &idlePageID}

	engine := newEngine(api, store)
	require.NoError(t, engine.FullResync(context.Background(), exhibitionID, deviceID))

	page, err := store.pages.FindByID(context.Background(), idlePageID)
	require.NoError(t, err)
	require.NotNil(t, page)

	stored, found, err := store.settings.GetUUID(context.Background(), models.SettingIdlePageID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, idlePageID, stored)
}

func TestFullResync_ExpandsSharedContentVersions(t *testing.T) {
	api := newFakeAPI()
	store := newTestStore(t)

	layoutID := uuid.New()
	devicePageID := uuid.New()
	siblingID := uuid.New()
	api.layouts[layoutID] = remoteLayout(layoutID)
	api.pages[devicePageID] = remotePage(devicePageID, layoutID, 0)
	api.pages[siblingID] = remotePage(siblingID, layoutID, 1)
	api.devicePages = []uuid.UUID{devicePageID}
	api.device = &models.Device{ID: deviceID, ExhibitionID: exhibitionID}

	engine := newEngine(api, store)
	require.NoError(t, engine.FullResync(context.Background(), exhibitionID, deviceID))

	// The sibling shares devicePage's content version and is pulled in too.
	page, err := store.pages.FindByID(context.Background(), siblingID)
	require.NoError(t, err)
	require.NotNil(t, page)
}

func TestFullResync_RemovesStaleRows(t *testing.T) {
	api := newFakeAPI()
	store := newTestStore(t)

	keptLayout := uuid.New()
	staleLayout := uuid.New()
	keptPage := uuid.New()
	stalePage := uuid.New()

	api.layouts[keptLayout] = remoteLayout(keptLayout)
	api.layouts[staleLayout] = remoteLayout(staleLayout)
	api.pages[keptPage] = remotePage(keptPage, keptLayout, 0)
	api.pages[stalePage] = remotePage(stalePage, staleLayout, 1)
	api.devicePages = []uuid.UUID{keptPage, stalePage}
	api.device = &models.Device{ID: deviceID, ExhibitionID: exhibitionID}

	engine := newEngine(api, store)
	require.NoError(t, engine.FullResync(context.Background(), exhibitionID, deviceID))

	delete(api.layouts, staleLayout)
	delete(api.pages, stalePage)
	api.devicePages = []uuid.UUID{keptPage}

	require.NoError(t, engine.FullResync(context.Background(), exhibitionID, deviceID))

	gone, err := store.pages.FindByID(context.Background(), stalePage)
	require.NoError(t, err)
	assert.Nil(t, gone)

	goneLayout, err := store.layouts.FindByID(context.Background(), staleLayout)
	require.NoError(t, err)
	assert.Nil(t, goneLayout)

	kept, err := store.pages.FindByID(context.Background(), keptPage)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestFullResync_ClearsIdlePageSettingWhenUnset(t *testing.T) {
	api := newFakeAPI()
	store := newTestStore(t)

	idlePageID := uuid.New()
	require.NoError(t, store.settings.Set(context.Background(), models.SettingIdlePageID, idlePageID.String()))

	api.device = &models.Device{ID: deviceID, ExhibitionID: exhibitionID}

	engine := newEngine(api, store)
	require.NoError(t, engine.FullResync(context.Background(), exhibitionID, deviceID))

	_, found, err := store.settings.GetUUID(context.Background(), models.SettingIdlePageID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpsertPage_FetchesDependentLayoutFirst(t *testing.T) {
	api := newFakeAPI()
	store := newTestStore(t)

	layoutID := uuid.New()
	pageID := uuid.New()
	api.layouts[layoutID] = remoteLayout(layoutID)
	api.pages[pageID] = remotePage(pageID, layoutID, 0)
	api.versions[versionID] = models.ContentVersion{ID: versionID, Name: "v1", Language: "fi"}

	engine := newEngine(api, store)
	require.NoError(t, engine.UpsertPage(context.Background(), exhibitionID, pageID))

	layout, err := store.layouts.FindByID(context.Background(), layoutID)
	require.NoError(t, err)
	require.NotNil(t, layout)

	page, err := store.pages.FindByID(context.Background(), pageID)
	require.NoError(t, err)
	require.NotNil(t, page)
}

func TestUpsertPage_DuplicateDeliveryStoresOneRow(t *testing.T) {
	api := newFakeAPI()
	store := newTestStore(t)

	layoutID := uuid.New()
	pageID := uuid.New()
	api.layouts[layoutID] = remoteLayout(layoutID)
	api.pages[pageID] = remotePage(pageID, layoutID, 0)
	api.versions[versionID] = models.ContentVersion{ID: versionID, Name: "v1", Language: "fi"}

	engine := newEngine(api, store)
	require.NoError(t, engine.UpsertPage(context.Background(), exhibitionID, pageID))
	require.NoError(t, engine.UpsertPage(context.Background(), exhibitionID, pageID))

	stored, err := store.pages.ListByLanguage(context.Background(), "fi")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, pageID, stored[0].ID)
}

func TestUpsertPage_RemoteGoneDeletesLocalRow(t *testing.T) {
	api := newFakeAPI()
	store := newTestStore(t)

	layoutID := uuid.New()
	pageID := uuid.New()
	layout := remoteLayout(layoutID)
	page := remotePage(pageID, layoutID, 0)
	require.NoError(t, store.layouts.Upsert(context.Background(), &layout))
	require.NoError(t, store.pages.Upsert(context.Background(), &page))

	engine := newEngine(api, store)
	require.NoError(t, engine.UpsertPage(context.Background(), exhibitionID, pageID))

	stored, err := store.pages.FindByID(context.Background(), pageID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestUpsertPage_DeletedContentVersionDeletesLocalRow(t *testing.T) {
	api := newFakeAPI()
	store := newTestStore(t)

	layoutID := uuid.New()
	pageID := uuid.New()
	api.layouts[layoutID] = remoteLayout(layoutID)
	api.pages[pageID] = remotePage(pageID, layoutID, 0)
	// versionID intentionally absent from api.versions

	page := remotePage(pageID, layoutID, 0)
	require.NoError(t, store.pages.Upsert(context.Background(), &page))

	engine := newEngine(api, store)
	require.NoError(t, engine.UpsertPage(context.Background(), exhibitionID, pageID))

	stored, err := store.pages.FindByID(context.Background(), pageID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestUpsertLayout_RemoteGoneDeletesLocalRow(t *testing.T) {
	api := newFakeAPI()
	store := newTestStore(t)

	layoutID := uuid.New()
	layout := remoteLayout(layoutID)
	require.NoError(t, store.layouts.Upsert(context.Background(), &layout))

	engine := newEngine(api, store)
	require.NoError(t, engine.UpsertLayout(context.Background(), exhibitionID, layoutID))

	stored, err := store.layouts.FindByID(context.Background(), layoutID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}
