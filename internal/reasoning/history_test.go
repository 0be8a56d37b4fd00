package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ops(recs []ReasoningRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Operation
	}
	return out
}

func TestHistoryRing(t *testing.T) {
	h := newHistory(3)
	assert.Empty(t, h.records())

	for _, op := range []string{"a", "b"} {
		h.add(ReasoningRecord{Operation: op})
	}
	assert.Equal(t, []string{"a", "b"}, ops(h.records()))

	for _, op := range []string{"c", "d", "e"} {
		h.add(ReasoningRecord{Operation: op})
	}
	assert.Equal(t, []string{"c", "d", "e"}, ops(h.records()))
	assert.Equal(t, 3, h.len())
}

func TestHistoryResizeKeepsNewest(t *testing.T) {
	h := newHistory(4)
	for _, op := range []string{"a", "b", "c", "d", "e"} {
		h.add(ReasoningRecord{Operation: op})
	}

	h.resize(2)
	assert.Equal(t, []string{"d", "e"}, ops(h.records()))

	h.resize(5)
	assert.Equal(t, []string{"d", "e"}, ops(h.records()))
	h.add(ReasoningRecord{Operation: "f"})
	assert.Equal(t, []string{"d", "e", "f"}, ops(h.records()))
}

func TestNewRecord(t *testing.T) {
	r := newRecord("op", map[string]any{"k": 1}, nil)
	assert.Equal(t, "op", r.Operation)
	assert.NotEmpty(t, r.ID)
	assert.False(t, r.Timestamp.IsZero())
}
