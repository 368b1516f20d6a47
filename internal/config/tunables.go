package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MentionConfidences are the per-tier extraction confidences.
type MentionConfidences struct {
	Canonical       float64 `yaml:"canonical"`
	Alias           float64 `yaml:"alias"`
	FirstNamePrimed float64 `yaml:"first_name_primed"`
	FirstNameUnique float64 `yaml:"first_name_unique"`
	LastNamePrimed  float64 `yaml:"last_name_primed"`
	LastNameUnique  float64 `yaml:"last_name_unique"`
	Pronoun         float64 `yaml:"pronoun"`
	Discovered      float64 `yaml:"discovered"`
}

// Escalation holds the hybrid scorer's thresholds.
type Escalation struct {
	MinConfidence float64 `yaml:"min_confidence"` // escalate below this confidence
	NeutralBand   float64 `yaml:"neutral_band"`   // escalate when |score| is below this
}

// Tunables are empirically chosen constants operators may override from a YAML file.
type Tunables struct {
	Mentions   MentionConfidences `yaml:"mentions"`
	Escalation Escalation         `yaml:"escalation"`
}

// DefaultTunables returns the built-in constants.
func DefaultTunables() Tunables {
	return Tunables{
		Mentions: MentionConfidences{
			Canonical:       1.0,
			Alias:           0.9,
			FirstNamePrimed: 0.75,
			FirstNameUnique: 0.65,
			LastNamePrimed:  0.7,
			LastNameUnique:  0.6,
			Pronoun:         0.45,
			Discovered:      0.7,
		},
		Escalation: Escalation{
			MinConfidence: 0.7,
			NeutralBand:   0.2,
		},
	}
}

// LoadTunables reads overrides from path on top of the defaults.
// An empty path returns the defaults.
func LoadTunables(path string) (Tunables, error) {
	t := DefaultTunables()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read tunables: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse tunables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

// Validate checks every constant lies in [0,1].
func (t Tunables) Validate() error {
	values := map[string]float64{
		"mentions.canonical":         t.Mentions.Canonical,
		"mentions.alias":             t.Mentions.Alias,
		"mentions.first_name_primed": t.Mentions.FirstNamePrimed,
		"mentions.first_name_unique": t.Mentions.FirstNameUnique,
		"mentions.last_name_primed":  t.Mentions.LastNamePrimed,
		"mentions.last_name_unique":  t.Mentions.LastNameUnique,
		"mentions.pronoun":           t.Mentions.Pronoun,
		"mentions.discovered":        t.Mentions.Discovered,
		"escalation.min_confidence":  t.Escalation.MinConfidence,
		"escalation.neutral_band":    t.Escalation.NeutralBand,
	}
	for name, v := range values {
		if v < 0 || v > 1 {
			return fmt.Errorf("tunable %s out of range [0,1]: %v", name, v)
		}
	}
	return nil
}
