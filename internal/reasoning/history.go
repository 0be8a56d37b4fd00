package reasoning

import (
	"time"

	"github.com/google/uuid"
)

// ReasoningRecord is an audit entry for one engine call.
type ReasoningRecord struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Operation  string         `json:"operation"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Results    map[string]any `json:"results,omitempty"`
}

// RecordSink receives every record the engine produces. Implementations must
// not block; the engine calls Record while holding its lock.
type RecordSink interface {
	Record(ReasoningRecord)
}

// RecordSinkFunc adapts a function to RecordSink.
type RecordSinkFunc func(ReasoningRecord)

func (f RecordSinkFunc) Record(r ReasoningRecord) { f(r) }

func newRecord(op string, params, results map[string]any) ReasoningRecord {
	return ReasoningRecord{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UTC(),
		Operation:  op,
		Parameters: params,
		Results:    results,
	}
}

// history is a fixed-size ring buffer of records.
type history struct {
	buf  []ReasoningRecord
	next int
	full bool
}

func newHistory(capacity int) *history {
	if capacity < 1 {
		capacity = 1
	}
	return &history{buf: make([]ReasoningRecord, capacity)}
}

func (h *history) add(r ReasoningRecord) {
	h.buf[h.next] = r
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
}

func (h *history) len() int {
	if h.full {
		return len(h.buf)
	}
	return h.next
}

// records returns the stored records oldest first.
func (h *history) records() []ReasoningRecord {
	out := make([]ReasoningRecord, 0, h.len())
	if h.full {
		out = append(out, h.buf[h.next:]...)
	}
	return append(out, h.buf[:h.next]...)
}

// resize keeps the newest records that fit.
func (h *history) resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity == len(h.buf) {
		return
	}
	recs := h.records()
	if len(recs) > capacity {
		recs = recs[len(recs)-capacity:]
	}
	h.buf = make([]ReasoningRecord, capacity)
	copy(h.buf, recs)
	h.next = len(recs) % capacity
	h.full = len(recs) == capacity
}
