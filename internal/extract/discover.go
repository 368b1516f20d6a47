package extract

import (
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
	"github.com/raphaelgruber/signalroom/internal/models"
)

// Span is a named entity found by a Recognizer.
type Span struct {
	Text  string
	Label string // PERSON, GPE, ORG
}

// Recognizer performs generic named-entity recognition.
type Recognizer interface {
	Recognize(text string) ([]Span, error)
}

// ProseRecognizer recognizes people and organizations with prose's NER model.
type ProseRecognizer struct{}

// NewProseRecognizer returns a recognizer backed by prose.
func NewProseRecognizer() *ProseRecognizer {
	return &ProseRecognizer{}
}

// Recognize returns the named entities prose finds in text.
func (ProseRecognizer) Recognize(text string) ([]Span, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("prose document: %w", err)
	}
	var spans []Span
	for _, ent := range doc.Entities() {
		spans = append(spans, Span{Text: ent.Text, Label: ent.Label})
	}
	return spans, nil
}

// spanType maps a recognizer label to a discovered type.
// prose uses GPE for geopolitical entities, which covers most organizations.
func spanType(label string) (models.DiscoveredType, bool) {
	switch label {
	case "PERSON":
		return models.DiscoveredPerson, true
	case "GPE", "ORG":
		return models.DiscoveredOrganization, true
	}
	return "", false
}

// discover runs recognition over caption plus comment and keeps spans that no
// catalog mention or catalog name covers.
func (x *Extractor) discover(comment, caption string, mentions []models.EntityMention) []models.DiscoveredMention {
	if x.recognizer == nil {
		return nil
	}

	text := comment
	if caption != "" {
		text = caption + " " + comment
	}
	spans, err := x.recognizer.Recognize(text)
	if err != nil {
		x.logger.Debug("entity recognition failed", "error", err)
		return nil
	}

	covered := x.coveredTerms(mentions)
	seen := make(map[string]bool)
	var out []models.DiscoveredMention
	for _, sp := range spans {
		typ, ok := spanType(sp.Label)
		if !ok {
			continue
		}
		name := strings.Trim(cleanText(sp.Text), ".,!?;:\"'()[]")
		key := models.DiscoveredKey(name)
		if key == "" || seen[key] {
			continue
		}
		if x.isCovered(key, covered) {
			continue
		}
		seen[key] = true
		out = append(out, models.DiscoveredMention{Name: name, Type: typ, Confidence: x.conf.Discovered})
	}
	return out
}

// coveredTerms collects the lower-cased tokens of every term a mention accounts for.
func (x *Extractor) coveredTerms(mentions []models.EntityMention) [][]string {
	var terms [][]string
	for _, m := range mentions {
		if m.MatchedText != "" {
			terms = append(terms, tokenize(strings.ToLower(m.MatchedText)))
		}
		for _, e := range x.index.Lookup(m.EntityName) {
			if e.ID != m.EntityID {
				continue
			}
			terms = append(terms, tokenize(e.Canonical))
			for _, a := range e.Aliases {
				terms = append(terms, tokenize(a))
			}
		}
	}
	return terms
}

// isCovered reports whether a recognized span overlaps a mentioned term on word
// boundaries or is itself a full catalog name or alias. A bare fragment of a
// catalog name that no mention accounts for stays discoverable.
func (x *Extractor) isCovered(key string, covered [][]string) bool {
	span := tokenize(key)
	if len(span) == 0 {
		return true
	}
	for _, term := range covered {
		if containsWords(term, span) || containsWords(span, term) {
			return true
		}
	}
	return x.index.Contains(key)
}
