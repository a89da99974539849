package metrics

import (
	"strings"
	"testing"
)

func TestHistogramRendersCumulativeBuckets(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	var buf strings.Builder
	snap := h.Snapshot()
	var cumulative uint64
	for i := range snap.buckets {
		cumulative += snap.counts[i]
	}
	if cumulative != 2 || snap.count != 3 {
		t.Fatalf("expected 2 bounded and 3 total observations, got %d and %d", cumulative, snap.count)
	}
	buf.WriteString(Render())
	if !strings.Contains(buf.String(), "cv_export_duration_ms_count") {
		t.Fatalf("expected export histogram in output")
	}
}

func TestLabeledCounterRendersPerSection(t *testing.T) {
	IncSectionSave("education")
	IncSectionSave("education")
	AddOrphansDeleted("skills", 3)

	out := Render()
	if sectionSaves.Get("education") < 2 {
		t.Fatalf("expected education saves to be counted")
	}
	if !strings.Contains(out, `cv_orphans_deleted_total{section="skills"}`) {
		t.Fatalf("expected skills orphan counter, got:\n%s", out)
	}
}
