package models

import "time"

// EntityType tags what kind of thing a catalog entity is.
type EntityType string

const (
	EntityPerson EntityType = "person"
	EntityShow   EntityType = "show"
	EntityCouple EntityType = "couple"
	EntityBrand  EntityType = "brand"
)

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityPerson, EntityShow, EntityCouple, EntityBrand:
		return true
	}
	return false
}

// MonitoredEntity is an operator-curated catalog entry.
// Aliases are matched case-insensitively.
type MonitoredEntity struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Aliases   []string   `json:"aliases,omitempty"`
	Type      EntityType `json:"type"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at,omitempty"`
}

// MentionMethod records which extraction tier produced a mention.
type MentionMethod string

const (
	MethodExact     MentionMethod = "exact"
	MethodAlias     MentionMethod = "alias"
	MethodFirstName MentionMethod = "first_name"
	MethodLastName  MentionMethod = "last_name"
	MethodPronoun   MentionMethod = "pronoun"
)

// EntityMention is a catalog entity found in a comment. Transient.
type EntityMention struct {
	EntityID    string        `json:"entity_id"`
	EntityName  string        `json:"entity_name"`
	MatchedText string        `json:"matched_text"`
	Confidence  float64       `json:"confidence"`
	Method      MentionMethod `json:"method"`
}
