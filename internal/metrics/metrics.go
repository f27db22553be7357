// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// The Prometheus implementation backs /metrics; the in-memory one backs tests.
type Recorder interface {
	// Application lifecycle
	IncApplicationSubmitted()
	IncApplicationReviewed(decision string) // "Approved" or "Rejected"
	IncAttachmentRecorded(slot string)
	IncStatusConflict()

	// Review dashboard counts
	IncStatsCacheHit()
	IncStatsCacheMiss()

	// Store access
	IncReadRetry()

	// Lifecycle event stream
	IncEventPublished(status string) // "success" or "dropped"

	// HTTP boundary
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)
}
