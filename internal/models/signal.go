package models

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"time"
)

// SignalKind is the category of an extracted signal.
type SignalKind string

const (
	KindSentiment SignalKind = "sentiment"
	KindEmotion   SignalKind = "emotion"
	KindStance    SignalKind = "stance"
	KindTopic     SignalKind = "topic"
	KindToxicity  SignalKind = "toxicity"
	KindSarcasm   SignalKind = "sarcasm"
)

// Sentiment labels.
const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
)

// SentimentLabel maps a score in [-1,1] to its label.
func SentimentLabel(score float64) string {
	switch {
	case score > 0.1:
		return LabelPositive
	case score < -0.1:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

// Signal is one extracted fact about a comment, optionally scoped to an entity.
// At most one Signal exists per SignalKey.
type Signal struct {
	CommentID    string     `json:"comment_id"`
	EntityID     *string    `json:"entity_id,omitempty"`
	Kind         SignalKind `json:"kind"`
	Value        string     `json:"value"`
	NumericValue *float64   `json:"numeric_value,omitempty"`
	Weight       float64    `json:"weight"`
	Confidence   float64    `json:"confidence"`
	Model        string     `json:"model"`
	ExtractedAt  time.Time  `json:"extracted_at"`
}

// Key returns the idempotency key of the signal.
func (s *Signal) Key() SignalKey {
	k := SignalKey{CommentID: s.CommentID, Kind: s.Kind, Model: s.Model}
	if s.EntityID != nil {
		k.EntityID = *s.EntityID
	}
	return k
}

// Normalize clamps confidence and numeric values into their valid ranges.
func (s *Signal) Normalize() {
	s.Confidence = Clamp(s.Confidence, 0, 1)
	if math.IsNaN(s.Weight) || s.Weight < 1 {
		s.Weight = 1
	}
	if s.NumericValue == nil {
		return
	}
	v := *s.NumericValue
	if math.IsNaN(v) {
		v = 0
	}
	switch s.Kind {
	case KindSentiment:
		v = Clamp(v, -1, 1)
	case KindToxicity:
		v = Clamp(v, 0, 1)
	}
	s.NumericValue = &v
}

// SignalKey identifies a signal row: (comment, entity-or-empty, kind, model).
// An empty EntityID means comment-level.
type SignalKey struct {
	CommentID string
	EntityID  string
	Kind      SignalKind
	Model     string
}

// ID returns a deterministic record identifier for the key.
func (k SignalKey) ID() string {
	h := sha256.New()
	for _, part := range []string{k.CommentID, k.EntityID, string(k.Kind), k.Model} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}
