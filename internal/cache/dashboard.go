package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hongminglow/all-in-dash/internal/models"
)

// DefaultTTL is how long a fetched dashboard is served without refetching.
const DefaultTTL = 5 * time.Minute

// Entry is a point-in-time view of the cache. Payload and FetchedAt are
// either both set or both zero. Payload is shared; do not mutate it.
type Entry struct {
	Payload   *models.DashboardPayload
	FetchedAt time.Time
}

// Dashboard is the process-wide dashboard cache. The dashboard controller is
// its only writer; anything may read it.
type Dashboard struct {
	mu    sync.RWMutex
	entry Entry
	ttl   time.Duration
	clock clockwork.Clock
}

// NewDashboard creates an empty cache. A non-positive ttl means DefaultTTL.
func NewDashboard(clock clockwork.Clock, ttl time.Duration) *Dashboard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Dashboard{ttl: ttl, clock: clock}
}

// Read returns the current entry.
func (d *Dashboard) Read() Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entry
}

// Write replaces the cached payload and stamps it with the current time.
func (d *Dashboard) Write(payload models.DashboardPayload) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entry = Entry{Payload: &payload, FetchedAt: d.clock.Now()}
}

// Patch edits a copy of the cached payload and swaps it in, keeping
// FetchedAt. It reports false when the cache is empty.
func (d *Dashboard) Patch(edit func(*models.DashboardPayload)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.entry.Payload == nil {
		return false
	}
	next := d.entry.Payload.Clone()
	edit(&next)
	d.entry.Payload = &next
	return true
}

// Clear empties the cache.
func (d *Dashboard) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entry = Entry{}
}

// IsFresh reports whether e holds a payload younger than the TTL.
func (d *Dashboard) IsFresh(e Entry) bool {
	return e.Payload != nil && d.clock.Since(e.FetchedAt) < d.ttl
}

// Now is the time Write would stamp an entry with.
func (d *Dashboard) Now() time.Time {
	return d.clock.Now()
}

// TTL returns the freshness window.
func (d *Dashboard) TTL() time.Duration {
	return d.ttl
}
