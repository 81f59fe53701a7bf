package session

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"kiosk-sync/pkg/metrics"
)

// TagListener receives the visible tag set after each change.
type TagListener func(visible []string)

// TagTracker tracks which RFID tags are currently in antenna range. A tag
// stays visible until its expire time passes; each detection refreshes it.
type TagTracker struct {
	mu        sync.Mutex
	expiry    map[string]time.Time
	listeners []TagListener
	logger    *zap.Logger

	now func() time.Time
}

func NewTagTracker(logger *zap.Logger) *TagTracker {
	return &TagTracker{
		expiry: make(map[string]time.Time),
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe registers a listener for visible-set changes.
func (t *TagTracker) Subscribe(l TagListener) {
	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()
}

// Seen refreshes or creates the entry for tag with expireTime = now + ttl.
func (t *TagTracker) Seen(tag string, ttl time.Duration) {
	t.mu.Lock()
	_, existed := t.expiry[tag]
	t.expiry[tag] = t.now().Add(ttl)
	visible, listeners := t.visibleLocked(), t.listeners
	t.mu.Unlock()

	metrics.VisibleTags.Set(float64(len(visible)))
	if !existed {
		t.logger.Debug("Tag became visible", zap.String("tag", tag))
		for _, l := range listeners {
			l(visible)
		}
	}
}

// Visible returns the tags whose expire time has not passed, sorted.
func (t *TagTracker) Visible() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visibleLocked()
}

// SweepExpired drops stale entries and returns the number removed.
func (t *TagTracker) SweepExpired() int {
	now := t.now()

	t.mu.Lock()
	removed := 0
	for tag, expireTime := range t.expiry {
		if !now.Before(expireTime) {
			delete(t.expiry, tag)
			removed++
		}
	}
	visible, listeners := t.visibleLocked(), t.listeners
	t.mu.Unlock()

	metrics.VisibleTags.Set(float64(len(visible)))
	if removed > 0 {
		t.logger.Debug("Swept expired tags", zap.Int("count", removed))
		for _, l := range listeners {
			l(visible)
		}
	}
	return removed
}

func (t *TagTracker) visibleLocked() []string {
	now := t.now()
	visible := make([]string, 0, len(t.expiry))
	for tag, expireTime := range t.expiry {
		if now.Before(expireTime) {
			visible = append(visible, tag)
		}
	}
	sort.Strings(visible)
	return visible
}
