package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	ApplicationsSubmitted uint64
	ApplicationsReviewed  map[string]uint64 // by decision
	AttachmentsRecorded   map[string]uint64 // by slot
	StatusConflicts       uint64
	StatsCacheHits        uint64
	StatsCacheMisses      uint64
	ReadRetries           uint64
	EventsPublished       uint64
	EventsDropped         uint64
	HTTPRequests          uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	applicationsSubmitted uint64
	statusConflicts       uint64
	statsCacheHits        uint64
	statsCacheMisses      uint64
	readRetries           uint64
	eventsPublished       uint64
	eventsDropped         uint64
	httpRequests          uint64

	mu       sync.Mutex
	reviewed map[string]uint64
	attached map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		reviewed: make(map[string]uint64),
		attached: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	reviewed := make(map[string]uint64, len(m.reviewed))
	for k, v := range m.reviewed {
		reviewed[k] = v
	}
	attached := make(map[string]uint64, len(m.attached))
	for k, v := range m.attached {
		attached[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		ApplicationsSubmitted: atomic.LoadUint64(&m.applicationsSubmitted),
		ApplicationsReviewed:  reviewed,
		AttachmentsRecorded:   attached,
		StatusConflicts:       atomic.LoadUint64(&m.statusConflicts),
		StatsCacheHits:        atomic.LoadUint64(&m.statsCacheHits),
		StatsCacheMisses:      atomic.LoadUint64(&m.statsCacheMisses),
		ReadRetries:           atomic.LoadUint64(&m.readRetries),
		EventsPublished:       atomic.LoadUint64(&m.eventsPublished),
		EventsDropped:         atomic.LoadUint64(&m.eventsDropped),
		HTTPRequests:          atomic.LoadUint64(&m.httpRequests),
	}
}

// IncApplicationSubmitted increments the submission counter.
func (m *InMemoryRecorder) IncApplicationSubmitted() {
	atomic.AddUint64(&m.applicationsSubmitted, 1)
}

// IncApplicationReviewed increments the review counter for a decision.
func (m *InMemoryRecorder) IncApplicationReviewed(decision string) {
	m.mu.Lock()
	m.reviewed[decision]++
	m.mu.Unlock()
}

// IncAttachmentRecorded increments the attachment counter for a slot.
func (m *InMemoryRecorder) IncAttachmentRecorded(slot string) {
	m.mu.Lock()
	m.attached[slot]++
	m.mu.Unlock()
}

// IncStatusConflict increments the lost-race counter.
func (m *InMemoryRecorder) IncStatusConflict() {
	atomic.AddUint64(&m.statusConflicts, 1)
}

// IncStatsCacheHit increments the stats cache hit counter.
func (m *InMemoryRecorder) IncStatsCacheHit() {
	atomic.AddUint64(&m.statsCacheHits, 1)
}

// IncStatsCacheMiss increments the stats cache miss counter.
func (m *InMemoryRecorder) IncStatsCacheMiss() {
	atomic.AddUint64(&m.statsCacheMisses, 1)
}

// IncReadRetry increments the store read retry counter.
func (m *InMemoryRecorder) IncReadRetry() {
	atomic.AddUint64(&m.readRetries, 1)
}

// IncEventPublished tracks lifecycle event publish outcomes.
func (m *InMemoryRecorder) IncEventPublished(status string) {
	if status == "dropped" {
		atomic.AddUint64(&m.eventsDropped, 1)
		return
	}
	atomic.AddUint64(&m.eventsPublished, 1)
}

// ObserveHTTPRequest counts a served request.
func (m *InMemoryRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	atomic.AddUint64(&m.httpRequests, 1)
}
