package transcript

import (
	"strings"
	"sync"
)

// Live tracks the continuously-updating transcript shown while listening:
// the accumulated committed text plus the current interim text. Interim text
// is replaced wholesale on every interim event; it is never appended.
//
// All methods are safe for concurrent use.
type Live struct {
	mu        sync.RWMutex
	committed []string
	interim   string
}

// NewLive returns an empty live transcript.
func NewLive() *Live {
	return &Live{}
}

// SetInterim replaces the current interim text.
func (l *Live) SetInterim(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interim = text
}

// Commit trims text and, if non-empty, appends it to the committed
// accumulator. The interim text is cleared either way, since a committed
// event supersedes whatever partial preceded it. Returns the trimmed text.
func (l *Live) Commit(text string) string {
	text = strings.TrimSpace(text)

	l.mu.Lock()
	defer l.mu.Unlock()
	if text != "" {
		l.committed = append(l.committed, text)
	}
	l.interim = ""
	return text
}

// Interim returns the current interim text.
func (l *Live) Interim() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.interim
}

// Committed returns the space-joined accumulated committed text.
func (l *Live) Committed() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return strings.Join(l.committed, " ")
}

// Text returns the full display text: committed followed by interim.
func (l *Live) Text() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	committed := strings.Join(l.committed, " ")
	switch {
	case committed == "":
		return l.interim
	case l.interim == "":
		return committed
	default:
		return committed + " " + l.interim
	}
}

// Reset clears both committed and interim text.
func (l *Live) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.committed = nil
	l.interim = ""
}
