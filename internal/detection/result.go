// Package detection holds detector output and the queue the overlay stage
// drains it from.
package detection

import (
	"github.com/bryanchriswhite/drawfilter/internal/geometry"
	"github.com/google/uuid"
)

// Result is one detected box. Timestamp is in microseconds on the media clock.
type Result struct {
	Rect      geometry.Rect `json:"rect"`
	Timestamp int64         `json:"timestamp"`
	Label     string        `json:"label,omitempty"`
	Score     float32       `json:"score,omitempty"`
}

// Batch is everything the detector saw at one instant.
type Batch struct {
	ID        string   `json:"id"`
	Timestamp int64    `json:"timestamp"`
	Results   []Result `json:"results"`
}

// NewBatch builds a batch stamped with the first result's timestamp. An
// empty result set uses fallback, which lets a detector say "nothing here
// at time T" and clear a previous overlay (in software by drawing nothing,
// in hardware by disabling the region).
func NewBatch(results []Result, fallback int64) Batch {
	ts := fallback
	if len(results) > 0 {
		ts = results[0].Timestamp
	}
	out := make([]Result, len(results))
	copy(out, results)
	return Batch{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Results:   out,
	}
}

// Rects returns the boxes of the batch in order.
func (b Batch) Rects() []geometry.Rect {
	rects := make([]geometry.Rect, len(b.Results))
	for i, r := range b.Results {
		rects[i] = r.Rect
	}
	return rects
}
