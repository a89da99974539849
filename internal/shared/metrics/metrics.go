package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	sectionSaves       = newLabeledCounter("section")
	sectionSaveFailed  = newLabeledCounter("section")
	orphansDeleted     = newLabeledCounter("section")
	orphanDeleteFailed = newLabeledCounter("section")

	exportsTotal      atomic.Uint64
	exportsFailed     atomic.Uint64
	snapshotCacheMiss atomic.Uint64

	exportDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncSectionSave counts a successful section save.
func IncSectionSave(section string) {
	sectionSaves.Inc(section)
}

// IncSectionSaveFailed counts a save that failed validation or remotely.
func IncSectionSaveFailed(section string) {
	sectionSaveFailed.Inc(section)
}

func AddOrphansDeleted(section string, n int) {
	orphansDeleted.Add(section, uint64(n))
}

func AddOrphanDeleteFailed(section string, n int) {
	orphanDeleteFailed.Add(section, uint64(n))
}

func IncExport() {
	exportsTotal.Add(1)
}

func IncExportFailed() {
	exportsFailed.Add(1)
}

func IncSnapshotCacheMiss() {
	snapshotCacheMiss.Add(1)
}

// ObserveExportDurationMs records an export duration in milliseconds.
func ObserveExportDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	exportDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeLabeled(&buf, "cv_section_saves_total", "Section saves that reached the store", sectionSaves)
	writeLabeled(&buf, "cv_section_save_failures_total", "Section saves that failed", sectionSaveFailed)
	writeLabeled(&buf, "cv_orphans_deleted_total", "Remote rows deleted by reconciliation", orphansDeleted)
	writeLabeled(&buf, "cv_orphan_delete_failures_total", "Reconciliation deletes that failed", orphanDeleteFailed)
	writeCounter(&buf, "cv_exports_total", "PDF exports started", exportsTotal.Load())
	writeCounter(&buf, "cv_export_failures_total", "PDF exports that failed", exportsFailed.Load())
	writeCounter(&buf, "cv_snapshot_cache_misses_total", "Session starts without a cached snapshot", snapshotCacheMiss.Load())
	writeHistogram(&buf, "cv_export_duration_ms", "Export duration in milliseconds", exportDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	label  string
	mu     sync.Mutex
	values map[string]uint64
}

func newLabeledCounter(label string) *labeledCounter {
	return &labeledCounter{label: label, values: make(map[string]uint64)}
}

func (l *labeledCounter) Inc(value string) {
	l.Add(value, 1)
}

func (l *labeledCounter) Add(value string, n uint64) {
	if n == 0 {
		return
	}
	l.mu.Lock()
	l.values[value] += n
	l.mu.Unlock()
}

func (l *labeledCounter) Get(value string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.values[value]
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe records value in the first bucket that holds it; counts are made
// cumulative when rendered.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeled(buf *bytes.Buffer, name, help string, l *labeledCounter) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	l.mu.Lock()
	keys := make([]string, 0, len(l.values))
	for k := range l.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, l.label, k, l.values[k])
	}
	l.mu.Unlock()
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SinceMillis returns the milliseconds elapsed since start.
func SinceMillis(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
