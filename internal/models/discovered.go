package models

import (
	"strings"
	"time"
)

// DiscoveredType is the coarse type assigned by generic recognition.
type DiscoveredType string

const (
	DiscoveredPerson       DiscoveredType = "person"
	DiscoveredOrganization DiscoveredType = "organization"
)

// Limits for the sample contexts kept on a DiscoveredEntity.
const (
	MaxSampleMentions = 10
	SampleMentionLen  = 200
)

// DiscoveredMention is a name found by recognition that is not in the catalog. Transient.
type DiscoveredMention struct {
	Name       string         `json:"name"`
	Type       DiscoveredType `json:"type"`
	Confidence float64        `json:"confidence"`
}

// Key returns the normalized unique key for the mention's name.
func (m DiscoveredMention) Key() string {
	return DiscoveredKey(m.Name)
}

// DiscoveredKey normalizes a discovered name for uniqueness checks.
func DiscoveredKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// DiscoveredEntity aggregates every sighting of an uncatalogued name.
// It is never promoted automatically.
type DiscoveredEntity struct {
	Name           string         `json:"name"`
	Type           DiscoveredType `json:"type"`
	FirstSeen      time.Time      `json:"first_seen"`
	LastSeen       time.Time      `json:"last_seen"`
	MentionCount   int            `json:"mention_count"`
	SampleMentions []string       `json:"sample_mentions"`
	Reviewed       bool           `json:"reviewed"`
}

// AppendSample adds a truncated sample context, keeping at most MaxSampleMentions.
func AppendSample(samples []string, sample string) []string {
	sample = strings.TrimSpace(sample)
	if sample == "" || len(samples) >= MaxSampleMentions {
		return samples
	}
	return append(samples, Truncate(sample, SampleMentionLen))
}
