// Package moments persists captured transcript moments and saved jargon
// terms. A moment is a slice of the rolling buffer frozen at capture time; a
// term is a jargon word together with its explanation, saved for later
// review.
package moments

import (
	"context"
	"time"
)

// Moment is a captured slice of transcript. Read-only after creation except
// for deletion.
type Moment struct {
	// ID is an opaque identifier assigned on insert.
	ID string

	// Transcript is the space-joined buffer text at capture time.
	Transcript string

	// DurationSeconds is the requested capture window, when known.
	DurationSeconds int

	// CreatedAt is assigned on insert.
	CreatedAt time.Time
}

// Term is a saved jargon word and its explanation.
type Term struct {
	// ID is an opaque identifier assigned on insert.
	ID string

	// Word is the saved word as it appeared in the transcript.
	Word string

	// Explanation is the plain-language explanation the word was saved with.
	Explanation string

	// CreatedAt is assigned on insert.
	CreatedAt time.Time
}

// Store persists moments and terms. Implementations assign ID and CreatedAt
// on insert. Deleting an unknown ID is not an error.
type Store interface {
	// InsertMoment stores a new moment, filling in m.ID and m.CreatedAt.
	InsertMoment(ctx context.Context, m *Moment) error

	// ListMoments returns all moments, newest first.
	ListMoments(ctx context.Context) ([]Moment, error)

	// DeleteMoment removes the moment with the given ID.
	DeleteMoment(ctx context.Context, id string) error

	// InsertTerm stores a new term, filling in t.ID and t.CreatedAt.
	InsertTerm(ctx context.Context, t *Term) error

	// ListTerms returns all terms, newest first.
	ListTerms(ctx context.Context) ([]Term, error)

	// DeleteTerm removes the term with the given ID.
	DeleteTerm(ctx context.Context, id string) error
}
