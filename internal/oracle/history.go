package oracle

import "sort"

// DefaultHistoryCapacity is the number of metrics retained per key.
const DefaultHistoryCapacity = 100

// History is the bounded, time ordered record of metrics for one key.
// Metrics are kept ascending by UpdateTime with no duplicate timestamps.
type History struct {
	capacity int
	metrics  []Metric
}

// NewHistory returns an empty history bounded to capacity entries.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity}
}

func historyFrom(capacity int, metrics []Metric) *History {
	h := NewHistory(capacity)
	h.metrics = metrics
	h.trim()
	return h
}

// Add inserts metric at its sorted position. A metric whose UpdateTime is
// already present is dropped, keeping the first value seen. When the history
// grows past capacity the oldest entries are evicted. Add reports whether the
// metric is retained.
func (h *History) Add(metric Metric) bool {
	ts := metric.Metadata.UpdateTime
	idx := sort.Search(len(h.metrics), func(i int) bool {
		return h.metrics[i].Metadata.UpdateTime >= ts
	})
	if idx < len(h.metrics) && h.metrics[idx].Metadata.UpdateTime == ts {
		return false
	}

	h.metrics = append(h.metrics, Metric{})
	copy(h.metrics[idx+1:], h.metrics[idx:])
	h.metrics[idx] = metric

	evicted := h.trim()
	return idx >= evicted
}

// trim drops entries from the front until the capacity holds and returns how many were removed.
func (h *History) trim() int {
	excess := len(h.metrics) - h.capacity
	if excess <= 0 {
		return 0
	}
	h.metrics = append(h.metrics[:0:0], h.metrics[excess:]...)
	return excess
}

// Latest returns the metric with the highest UpdateTime.
func (h *History) Latest() (Metric, bool) {
	if len(h.metrics) == 0 {
		return Metric{}, false
	}
	return h.metrics[len(h.metrics)-1], true
}

// LatestRange returns up to n of the most recent metrics, ascending.
func (h *History) LatestRange(n int) []Metric {
	if n <= 0 {
		return []Metric{}
	}
	if n > len(h.metrics) {
		n = len(h.metrics)
	}
	out := make([]Metric, n)
	copy(out, h.metrics[len(h.metrics)-n:])
	return out
}

// All returns every retained metric, ascending.
func (h *History) All() []Metric {
	out := make([]Metric, len(h.metrics))
	copy(out, h.metrics)
	return out
}

// Len reports the number of retained metrics.
func (h *History) Len() int {
	return len(h.metrics)
}

// Capacity reports the retention bound.
func (h *History) Capacity() int {
	return h.capacity
}
