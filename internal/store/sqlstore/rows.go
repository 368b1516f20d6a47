package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/raphaelgruber/signalroom/internal/models"
	"gorm.io/datatypes"
)

type entityRow struct {
	ID        string         `gorm:"primaryKey;size:128"`
	Name      string         `gorm:"size:255;not null"`
	Aliases   datatypes.JSON `gorm:"type:json"`
	Type      string         `gorm:"size:32;not null"`
	Active    bool           `gorm:"index;not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (entityRow) TableName() string { return "monitored_entities" }

type commentRow struct {
	ID          string     `gorm:"primaryKey;size:128"`
	Text        string     `gorm:"type:text;not null"`
	Likes       int        `gorm:"not null;default:0"`
	PostCaption string     `gorm:"type:text"`
	PostedAt    time.Time  `gorm:"index"`
	EnrichedAt  *time.Time `gorm:"index"`
}

func (commentRow) TableName() string { return "comments" }

// signalRow stores comment-level signals with an empty EntityKey so the
// composite unique index covers them too.
type signalRow struct {
	ID           string   `gorm:"primaryKey;size:32"`
	CommentID    string   `gorm:"size:128;not null;uniqueIndex:uq_signal_key,priority:1"`
	EntityKey    string   `gorm:"size:128;not null;default:'';uniqueIndex:uq_signal_key,priority:2"`
	Kind         string   `gorm:"size:32;not null;uniqueIndex:uq_signal_key,priority:3"`
	Model        string   `gorm:"size:128;not null;uniqueIndex:uq_signal_key,priority:4"`
	Value        string   `gorm:"size:255"`
	NumericValue *float64
	Weight       float64 `gorm:"not null"`
	Confidence   float64 `gorm:"not null"`
	ExtractedAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (signalRow) TableName() string { return "signals" }

type discoveredRow struct {
	Key            string         `gorm:"primaryKey;size:255"`
	Name           string         `gorm:"size:255;not null"`
	Type           string         `gorm:"size:32;not null"`
	FirstSeen      time.Time      `gorm:"not null"`
	LastSeen       time.Time      `gorm:"not null"`
	MentionCount   int            `gorm:"index;not null;default:0"`
	SampleMentions datatypes.JSON `gorm:"type:json"`
	Reviewed       bool           `gorm:"index;not null;default:false"`
}

func (discoveredRow) TableName() string { return "discovered_entities" }

func toEntityRow(e models.MonitoredEntity) entityRow {
	return entityRow{
		ID:      e.ID,
		Name:    e.Name,
		Aliases: marshalStrings(e.Aliases),
		Type:    string(e.Type),
		Active:  e.Active,
	}
}

func (r entityRow) model() (models.MonitoredEntity, error) {
	aliases, err := unmarshalStrings(r.Aliases)
	if err != nil {
		return models.MonitoredEntity{}, fmt.Errorf("entity %s aliases: %w", r.ID, err)
	}
	return models.MonitoredEntity{
		ID:        r.ID,
		Name:      r.Name,
		Aliases:   aliases,
		Type:      models.EntityType(r.Type),
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func toCommentRow(c models.Comment) commentRow {
	return commentRow{
		ID:          c.ID,
		Text:        c.Text,
		Likes:       c.Likes,
		PostCaption: c.PostCaption,
		PostedAt:    c.PostedAt,
		EnrichedAt:  c.EnrichedAt,
	}
}

func (r commentRow) model() models.Comment {
	return models.Comment{
		ID:          r.ID,
		Text:        r.Text,
		Likes:       r.Likes,
		PostCaption: r.PostCaption,
		PostedAt:    r.PostedAt,
		EnrichedAt:  r.EnrichedAt,
	}
}

func toSignalRow(s *models.Signal) signalRow {
	key := s.Key()
	return signalRow{
		ID:           key.ID(),
		CommentID:    key.CommentID,
		EntityKey:    key.EntityID,
		Kind:         string(key.Kind),
		Model:        key.Model,
		Value:        s.Value,
		NumericValue: s.NumericValue,
		Weight:       s.Weight,
		Confidence:   s.Confidence,
		ExtractedAt:  s.ExtractedAt,
	}
}

func (r signalRow) model() models.Signal {
	s := models.Signal{
		CommentID:    r.CommentID,
		Kind:         models.SignalKind(r.Kind),
		Value:        r.Value,
		NumericValue: r.NumericValue,
		Weight:       r.Weight,
		Confidence:   r.Confidence,
		Model:        r.Model,
		ExtractedAt:  r.ExtractedAt,
	}
	if r.EntityKey != "" {
		id := r.EntityKey
		s.EntityID = &id
	}
	return s
}

func (r discoveredRow) model() (models.DiscoveredEntity, error) {
	samples, err := unmarshalStrings(r.SampleMentions)
	if err != nil {
		return models.DiscoveredEntity{}, fmt.Errorf("discovered %q samples: %w", r.Key, err)
	}
	return models.DiscoveredEntity{
		Name:           r.Name,
		Type:           models.DiscoveredType(r.Type),
		FirstSeen:      r.FirstSeen,
		LastSeen:       r.LastSeen,
		MentionCount:   r.MentionCount,
		SampleMentions: samples,
		Reviewed:       r.Reviewed,
	}, nil
}

func marshalStrings(v []string) datatypes.JSON {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}

// unmarshalStrings decodes a JSON string array. An empty column is an empty list.
func unmarshalStrings(j datatypes.JSON) ([]string, error) {
	out := []string{}
	if len(j) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(j, &out); err != nil {
		return nil, fmt.Errorf("decode string list: %w", err)
	}
	return out, nil
}
