// Session-scoped photo gallery
package gallery

import (
	"iter"
	"sync"
	"time"

	"photo-booth/internal/core"
	"photo-booth/internal/effects"
)

// Gallery keeps saved photos in insertion order. Ids start at 1 and
// strictly increase. By default Clear keeps the counter running so an id
// is never reused within a gallery; WithResetOnClear restarts it at 0.
type Gallery struct {
	mu           sync.RWMutex
	records      []PhotoRecord
	lastID       int
	resetOnClear bool
	now          func() time.Time
}

// Option configures a Gallery
type Option func(*Gallery)

// WithResetOnClear makes Clear reset the id counter
func WithResetOnClear() Option {
	return func(g *Gallery) { g.resetOnClear = true }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(g *Gallery) { g.now = now }
}

func New(opts ...Option) *Gallery {
	g := &Gallery{
		records: make([]PhotoRecord, 0),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Save appends a new record and returns it
func (g *Gallery) Save(img core.Image, effect effects.Kind, source Source) PhotoRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastID++
	record := PhotoRecord{
		id:        g.lastID,
		image:     img,
		effect:    effect,
		source:    source,
		timestamp: g.now().Truncate(time.Second),
	}
	g.records = append(g.records, record)
	return record
}

// List yields records newest first. Each range over the sequence takes
// a fresh snapshot, so it can be restarted.
func (g *Gallery) List() iter.Seq[PhotoRecord] {
	return func(yield func(PhotoRecord) bool) {
		snapshot := g.snapshot()
		for i := len(snapshot) - 1; i >= 0; i-- {
			if !yield(snapshot[i]) {
				return
			}
		}
	}
}

// ListOldestFirst yields records in insertion order
func (g *Gallery) ListOldestFirst() iter.Seq[PhotoRecord] {
	return func(yield func(PhotoRecord) bool) {
		for _, r := range g.snapshot() {
			if !yield(r) {
				return
			}
		}
	}
}

// All returns the records newest first
func (g *Gallery) All() []PhotoRecord {
	snapshot := g.snapshot()
	out := make([]PhotoRecord, len(snapshot))
	for i, r := range snapshot {
		out[len(snapshot)-1-i] = r
	}
	return out
}

// Get looks a record up by id
func (g *Gallery) Get(id int) (PhotoRecord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, r := range g.records {
		if r.id == id {
			return r, true
		}
	}
	return PhotoRecord{}, false
}

// Latest returns the most recently saved record
func (g *Gallery) Latest() (PhotoRecord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.records) == 0 {
		return PhotoRecord{}, false
	}
	return g.records[len(g.records)-1], true
}

// Clear removes every record
func (g *Gallery) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.records = make([]PhotoRecord, 0)
	if g.resetOnClear {
		g.lastID = 0
	}
}

func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.records)
}

// Stats summarises the gallery
type Stats struct {
	Total        int           `json:"total"`
	LatestID     int           `json:"latestId,omitempty"`
	LatestTime   string        `json:"latestTimestamp,omitempty"`
	LatestEffect *effects.Kind `json:"latestEffect,omitempty"`
}

func (g *Gallery) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := Stats{Total: len(g.records)}
	if n := len(g.records); n > 0 {
		latest := g.records[n-1]
		effect := latest.effect
		stats.LatestID = latest.id
		stats.LatestTime = latest.TimestampString()
		stats.LatestEffect = &effect
	}
	return stats
}

func (g *Gallery) snapshot() []PhotoRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]PhotoRecord, len(g.records))
	copy(out, g.records)
	return out
}
