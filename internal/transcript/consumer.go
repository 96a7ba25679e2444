package transcript

import (
	"log/slog"

	"github.com/auricle-audio/auricle/pkg/provider/stt"
)

// Consumer applies transcription session events to the live transcript and
// the rolling buffer, in the order the session delivers them. It is the
// single writer for both, so event ordering from the service is preserved
// end to end.
type Consumer struct {
	live   *Live
	buffer *RollingBuffer

	// OnInterim, when non-nil, is called with each interim text after it has
	// replaced the previous one.
	OnInterim func(text string)

	// OnCommitted, when non-nil, is called with each non-empty committed
	// text after it has been applied.
	OnCommitted func(text string)

	// OnError, when non-nil, is called for error events from the session.
	OnError func(err error)
}

// NewConsumer wires a consumer to the given live transcript and buffer.
func NewConsumer(live *Live, buffer *RollingBuffer) *Consumer {
	return &Consumer{live: live, buffer: buffer}
}

// Run drains events until the channel closes, applying each in order.
// Whitespace-only committed events are dropped without creating a segment.
func (c *Consumer) Run(events <-chan stt.Event) {
	for ev := range events {
		c.apply(ev)
	}
}

func (c *Consumer) apply(ev stt.Event) {
	switch ev.Type {
	case stt.EventInterim:
		c.live.SetInterim(ev.Text)
		if c.OnInterim != nil {
			c.OnInterim(ev.Text)
		}

	case stt.EventCommitted:
		text := c.live.Commit(ev.Text)
		if text == "" {
			return
		}
		c.buffer.Append(text)
		if c.OnCommitted != nil {
			c.OnCommitted(text)
		}

	case stt.EventError:
		slog.Error("transcription session error", "error", ev.Err)
		if c.OnError != nil {
			c.OnError(ev.Err)
		}
	}
}
