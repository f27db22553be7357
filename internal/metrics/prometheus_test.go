package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheus(reg)

	rec.IncApplicationSubmitted()
	rec.IncApplicationSubmitted()
	rec.IncApplicationReviewed("Approved")
	rec.IncStatsCacheHit()
	rec.IncStatsCacheMiss()
	rec.IncStatsCacheMiss()
	rec.ObserveHTTPRequest("GET", "/api/v1/applications", 200, 12*time.Millisecond)

	if got := testutil.ToFloat64(rec.submitted); got != 2 {
		t.Errorf("submitted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rec.reviewed.WithLabelValues("Approved")); got != 1 {
		t.Errorf("reviewed{Approved} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.statsCache.WithLabelValues("miss")); got != 2 {
		t.Errorf("stats miss = %v, want 2", got)
	}
	if n := testutil.CollectAndCount(rec.httpDuration); n != 1 {
		t.Errorf("http histogram series = %d, want 1", n)
	}
}

func TestInMemoryRecorder_Snapshot(t *testing.T) {
	rec := NewInMemory()
	var _ Recorder = rec

	rec.IncApplicationSubmitted()
	rec.IncApplicationReviewed("Rejected")
	rec.IncAttachmentRecorded("idDocument")
	rec.IncEventPublished("success")
	rec.IncEventPublished("dropped")

	snap := rec.Snapshot()
	if snap.ApplicationsSubmitted != 1 || snap.ApplicationsReviewed["Rejected"] != 1 || snap.AttachmentsRecorded["idDocument"] != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.EventsPublished != 1 || snap.EventsDropped != 1 {
		t.Errorf("events: published=%d dropped=%d", snap.EventsPublished, snap.EventsDropped)
	}
}
