// Package store defines the persistence contract the enrichment pipeline writes through.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/raphaelgruber/signalroom/internal/models"
)

// Sentinel errors shared by store backends.
var (
	// ErrUnknownStore is returned for a backend name with no implementation.
	ErrUnknownStore = errors.New("unknown store backend")

	// ErrBatchClosed is returned when a committed or rolled back batch is reused.
	ErrBatchClosed = errors.New("batch already closed")
)

// Store reads comments and the catalog and opens write batches.
type Store interface {
	// ListActiveEntities returns the active catalog, ordered by name.
	ListActiveEntities(ctx context.Context) ([]models.MonitoredEntity, error)

	// ListComments returns the comments a filter selects, oldest first.
	ListComments(ctx context.Context, filter models.CommentFilter) ([]models.Comment, error)

	// ListSignals returns every signal recorded for a comment.
	ListSignals(ctx context.Context, commentID string) ([]models.Signal, error)

	// ListUnreviewedDiscovered returns unreviewed discovered entities with at
	// least minMentions sightings, most mentioned first.
	ListUnreviewedDiscovered(ctx context.Context, minMentions int) ([]models.DiscoveredEntity, error)

	// Begin opens a write batch.
	Begin(ctx context.Context) (Batch, error)

	Close(ctx context.Context) error
}

// Batch is one commit window. It is owned by a single caller.
type Batch interface {
	// UpsertSignal inserts the signal or updates value, numeric value,
	// confidence, weight and timestamp of the row with the same key.
	UpsertSignal(ctx context.Context, s *models.Signal) (created bool, err error)

	// UpsertDiscovered records a sighting: create on first sight, otherwise
	// bump the count, refresh last seen and append the sample.
	UpsertDiscovered(ctx context.Context, m models.DiscoveredMention, sample string, seenAt time.Time) (created bool, err error)

	// MarkEnriched stamps a comment as processed.
	MarkEnriched(ctx context.Context, commentID string, at time.Time) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Admin holds the operator-side writes used to seed a store.
type Admin interface {
	UpsertEntity(ctx context.Context, e models.MonitoredEntity) error
	SaveComments(ctx context.Context, comments []models.Comment) error
}
