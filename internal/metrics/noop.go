package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncApplicationSubmitted() {}
func (n *NoopRecorder) IncApplicationReviewed(decision string) {}
func (n *NoopRecorder) IncAttachmentRecorded(slot string) {}
func (n *NoopRecorder) IncStatusConflict() {}
func (n *NoopRecorder) IncStatsCacheHit() {}
func (n *NoopRecorder) IncStatsCacheMiss() {}
func (n *NoopRecorder) IncReadRetry() {}
func (n *NoopRecorder) IncEventPublished(status string) {}

func (n *NoopRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {}
