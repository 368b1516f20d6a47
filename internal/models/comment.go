package models

import (
	"errors"
	"time"
)

// Comment is a normalized comment record read from storage.
type Comment struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	Likes       int        `json:"likes"`
	PostCaption string     `json:"post_caption,omitempty"`
	PostedAt    time.Time  `json:"posted_at,omitempty"`
	EnrichedAt  *time.Time `json:"enriched_at,omitempty"`
}

// EngagementWeight is 1.0 plus one per hundred likes.
// Negative like counts are treated as zero.
func EngagementWeight(likes int) float64 {
	if likes < 0 {
		likes = 0
	}
	return 1.0 + float64(likes)/100.0
}

// ErrEmptySelector is returned when a CommentFilter selects nothing.
var ErrEmptySelector = errors.New("comment filter needs ids, since or only-unenriched")

// CommentFilter selects the comments an enrichment run covers.
// Exactly one of IDs, Since or OnlyUnenriched drives selection; Limit caps any of them.
type CommentFilter struct {
	IDs            []string
	Since          *time.Time
	OnlyUnenriched bool
	Limit          int
}

// Validate checks that exactly one selector is set.
func (f CommentFilter) Validate() error {
	n := 0
	if len(f.IDs) > 0 {
		n++
	}
	if f.Since != nil {
		n++
	}
	if f.OnlyUnenriched {
		n++
	}
	switch n {
	case 0:
		return ErrEmptySelector
	case 1:
		return nil
	default:
		return errors.New("comment filter accepts only one of ids, since or only-unenriched")
	}
}
