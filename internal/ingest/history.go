package ingest

import (
	"sync"

	"github.com/ppiankov/consolidator/internal/model"
)

// History keeps the most recent ingestion reports
type History struct {
	mu      sync.Mutex
	reports []model.IngestionReport
	next    int
	full    bool
}

// NewHistory creates a ring holding size reports
func NewHistory(size int) *History {
	if size <= 0 {
		size = 20
	}
	return &History{reports: make([]model.IngestionReport, size)}
}

// Add records a report, evicting the oldest when full
func (h *History) Add(r model.IngestionReport) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.reports[h.next] = r
	h.next = (h.next + 1) % len(h.reports)
	if h.next == 0 {
		h.full = true
	}
}

// Recent returns the stored reports, oldest first
func (h *History) Recent() []model.IngestionReport {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.full {
		return append([]model.IngestionReport(nil), h.reports[:h.next]...)
	}
	out := make([]model.IngestionReport, 0, len(h.reports))
	out = append(out, h.reports[h.next:]...)
	return append(out, h.reports[:h.next]...)
}
