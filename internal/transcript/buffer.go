// Package transcript maintains the live transcript state for a listening
// session: the rolling buffer of committed segments that backs
// capture-a-moment, and the interim/committed view consumed by displays and
// jargon detection.
package transcript

import (
	"strings"
	"sync"
	"time"
)

// DefaultRetention is how long committed segments are kept in the rolling
// buffer before lazy eviction removes them.
const DefaultRetention = 60 * time.Second

// Segment is one committed piece of transcript. Immutable once created;
// removed only by eviction or an explicit Clear.
type Segment struct {
	// Text is the trimmed, non-empty committed text.
	Text string

	// Timestamp records when the text was committed.
	Timestamp time.Time
}

// RollingBuffer is a time-indexed log of committed transcript segments.
// Segments older than the retention window are evicted lazily on every
// Append; there is no background timer. Queries may ask for a window wider
// than retention, in which case only still-retained segments are returned.
//
// All methods are safe for concurrent use.
type RollingBuffer struct {
	mu        sync.RWMutex
	segments  []Segment
	retention time.Duration

	// now is replaceable in tests.
	now func() time.Time
}

// NewRollingBuffer creates a buffer with the given retention window.
// A non-positive retention falls back to DefaultRetention.
func NewRollingBuffer(retention time.Duration) *RollingBuffer {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RollingBuffer{
		retention: retention,
		now:       time.Now,
	}
}

// Append trims text and, if non-empty, stores it as a new segment stamped
// with the current time. Expired segments are evicted before the append, so
// the buffer never holds more than one retention window of history plus the
// new entry.
func (b *RollingBuffer) Append(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.evict(now)
	b.segments = append(b.segments, Segment{Text: text, Timestamp: now})
}

// Query returns the space-joined text of all currently-held segments whose
// timestamp is within window of now, in chronological order. Returns the
// empty string when nothing matches.
func (b *RollingBuffer) Query(window time.Duration) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cutoff := b.now().Add(-window)
	var parts []string
	for _, s := range b.segments {
		if s.Timestamp.Before(cutoff) {
			continue
		}
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}

// Segments returns a copy of all currently-held segments in chronological
// order, without triggering eviction.
func (b *RollingBuffer) Segments() []Segment {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Segment, len(b.segments))
	copy(out, b.segments)
	return out
}

// Len reports the number of currently-held segments.
func (b *RollingBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.segments)
}

// Clear empties the buffer unconditionally. Idempotent.
func (b *RollingBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.segments = nil
}

// evict removes segments older than the retention window. Must be called
// with b.mu held. Survivors are copied to a fresh backing array so evicted
// segments do not pin memory for the lifetime of the session.
func (b *RollingBuffer) evict(now time.Time) {
	cutoff := now.Add(-b.retention)

	start := 0
	for start < len(b.segments) && b.segments[start].Timestamp.Before(cutoff) {
		start++
	}
	if start == 0 {
		return
	}

	keep := b.segments[start:]
	fresh := make([]Segment, len(keep))
	copy(fresh, keep)
	b.segments = fresh
}
