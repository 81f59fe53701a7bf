package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kiosk-sync/internal/models"
)

func activeSession(modifiedAt time.Time) *models.VisitorSession {
	return &models.VisitorSession{
		ID:         uuid.New(),
		State:      models.SessionActive,
		Language:   "fi",
		Variables:  map[string]string{"score": "0"},
		ExpiresAt:  modifiedAt.Add(time.Hour),
		ModifiedAt: modifiedAt,
		Tags:       []string{"tag-1"},
	}
}

func strPtr(s string) *string {
	return &s
}

func TestManager_StartAndEndSession(t *testing.T) {
	m := NewManager(zap.NewNop())

	var seen []*models.VisitorSession
	m.Subscribe(func(s *models.VisitorSession) { seen = append(seen, s) })

	session := activeSession(time.Now())
	m.StartSession(session, []string{"tag-1", "tag-2"})

	current := m.Current()
	require.NotNil(t, current)
	assert.Equal(t, session.ID, current.ID)
	assert.Equal(t, []string{"tag-1", "tag-2"}, m.Tags())

	m.EndSession()
	assert.Nil(t, m.Current())
	assert.Empty(t, m.Tags())

	require.Len(t, seen, 2)
	assert.NotNil(t, seen[0])
	assert.Nil(t, seen[1])
}

func TestManager_CurrentReturnsSnapshot(t *testing.T) {
	m := NewManager(zap.NewNop())
	m.StartSession(activeSession(time.Now()), nil)

	first := m.Current()
	first.Variables["score"] = "tampered"

	second := m.Current()
	assert.Equal(t, "0", second.Variables["score"])
}

func TestManager_SetVariable(t *testing.T) {
	m := NewManager(zap.NewNop())

	// No active session: nothing to mutate.
	assert.False(t, m.SetVariable("score", strPtr("1")))

	m.StartSession(activeSession(time.Now()), nil)

	var notified int
	m.Subscribe(func(s *models.VisitorSession) { notified++ })

	require.True(t, m.SetVariable("score", strPtr("7")))
	assert.Equal(t, "7", m.Current().Variables["score"])

	require.True(t, m.SetVariable("score", nil))
	_, ok := m.Current().Variables["score"]
	assert.False(t, ok)

	assert.Equal(t, 2, notified)
}

func TestManager_MergeRemoteLastWriterWins(t *testing.T) {
	m := NewManager(zap.NewNop())

	base := time.Now()
	session := activeSession(base)
	m.StartSession(session, nil)

	older := *session.Clone()
	older.ModifiedAt = base.Add(-time.Minute)
	older.Variables = map[string]string{"score": "stale"}
	m.MergeRemote(older)
	assert.Equal(t, "0", m.Current().Variables["score"])

	equal := *session.Clone()
	equal.Variables = map[string]string{"score": "tied"}
	m.MergeRemote(equal)
	assert.Equal(t, "0", m.Current().Variables["score"])

	newer := *session.Clone()
	newer.ModifiedAt = base.Add(time.Minute)
	newer.Variables = map[string]string{"score": "42"}
	m.MergeRemote(newer)
	assert.Equal(t, "42", m.Current().Variables["score"])
}

func TestManager_MergeRemoteCachesForeignSessions(t *testing.T) {
	m := NewManager(zap.NewNop())

	foreign := *activeSession(time.Now())
	m.MergeRemote(foreign)

	assert.Nil(t, m.Current())
	cached := m.CachedSessions()
	require.Len(t, cached, 1)
	assert.Equal(t, foreign.ID, cached[0].ID)
}

func TestManager_FindByTag(t *testing.T) {
	m := NewManager(zap.NewNop())

	session := *activeSession(time.Now())
	session.Tags = []string{"aa:bb", "cc:dd"}
	m.MergeRemote(session)

	found := m.FindByTag("cc:dd")
	require.NotNil(t, found)
	assert.Equal(t, session.ID, found.ID)

	assert.Nil(t, m.FindByTag("ee:ff"))
}

func TestManager_RemoveExpired(t *testing.T) {
	m := NewManager(zap.NewNop())

	base := time.Unix(1700000000, 0)
	m.now = func() time.Time { return base }

	live := *activeSession(base)
	live.ExpiresAt = base.Add(time.Hour)
	expired := *activeSession(base)
	expired.ExpiresAt = base.Add(-time.Second)
	m.MergeRemote(live)
	m.MergeRemote(expired)

	assert.Equal(t, 1, m.RemoveExpired())

	cached := m.CachedSessions()
	require.Len(t, cached, 1)
	assert.Equal(t, live.ID, cached[0].ID)

	// A second sweep finds nothing new.
	assert.Equal(t, 0, m.RemoveExpired())
}
