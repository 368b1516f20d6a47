// Package extract finds catalog entity mentions and uncatalogued names in comment text.
package extract

import (
	"log/slog"
	"strings"

	"github.com/raphaelgruber/signalroom/internal/catalog"
	"github.com/raphaelgruber/signalroom/internal/models"
)

// Confidences holds the per-tier mention confidences.
type Confidences struct {
	Canonical       float64
	Alias           float64
	FirstNamePrimed float64
	FirstNameUnique float64
	LastNamePrimed  float64
	LastNameUnique  float64
	Pronoun         float64
	Discovered      float64
}

// DefaultConfidences returns the standard tier confidences.
func DefaultConfidences() Confidences {
	return Confidences{
		Canonical:       1.0,
		Alias:           0.9,
		FirstNamePrimed: 0.75,
		FirstNameUnique: 0.65,
		LastNamePrimed:  0.7,
		LastNameUnique:  0.6,
		Pronoun:         0.45,
		Discovered:      0.7,
	}
}

// Result is the output of one extraction.
type Result struct {
	Mentions   []models.EntityMention
	Discovered []models.DiscoveredMention
}

// Extractor maps comment text plus optional caption to mentions.
// It is safe for concurrent use; the catalog index is read-only.
type Extractor struct {
	index      *catalog.Index
	recognizer Recognizer
	conf       Confidences
	logger     *slog.Logger
}

// New creates an extractor over the given catalog snapshot.
// A nil recognizer disables the discovery pass.
func New(index *catalog.Index, recognizer Recognizer, conf Confidences, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if index == nil {
		index = catalog.Build(nil)
	}
	return &Extractor{index: index, recognizer: recognizer, conf: conf, logger: logger}
}

// Index returns the catalog snapshot the extractor matches against.
func (x *Extractor) Index() *catalog.Index {
	return x.index
}

// Extract runs the exact/alias, partial-name and discovery passes.
// Matching only ever looks at the comment text; the caption primes
// partial matches and feeds recognition context.
func (x *Extractor) Extract(text, caption string) Result {
	var res Result

	comment := cleanText(text)
	if comment == "" {
		return res
	}
	lowered := strings.ToLower(comment)
	primed := x.primedSet(caption)

	matched := make(map[string]bool)
	for _, e := range x.index.Entries() {
		if m, ok := x.exactMatch(e, comment, lowered); ok {
			res.Mentions = append(res.Mentions, m)
			matched[e.ID] = true
		}
	}

	tokens := tokenSet(lowered)
	hasPronoun := containsPronoun(tokens)
	for _, e := range x.index.Entries() {
		if matched[e.ID] {
			continue
		}
		if m, ok := x.partialMatch(e, tokens, primed[e.ID], hasPronoun); ok {
			res.Mentions = append(res.Mentions, m)
			matched[e.ID] = true
		}
	}

	res.Discovered = x.discover(comment, cleanText(caption), res.Mentions)
	return res
}

// primedSet returns the ids of entities named (canonically or by alias) in the caption.
func (x *Extractor) primedSet(caption string) map[string]bool {
	primed := make(map[string]bool)
	c := strings.ToLower(cleanText(caption))
	if c == "" {
		return primed
	}
	for _, e := range x.index.Entries() {
		if strings.Contains(c, e.Canonical) {
			primed[e.ID] = true
			continue
		}
		for _, a := range e.Aliases {
			if strings.Contains(c, a) {
				primed[e.ID] = true
				break
			}
		}
	}
	return primed
}

func (x *Extractor) exactMatch(e catalog.Entry, comment, lowered string) (models.EntityMention, bool) {
	if pos := strings.Index(lowered, e.Canonical); pos >= 0 {
		return models.EntityMention{
			EntityID:    e.ID,
			EntityName:  e.Name,
			MatchedText: originalSpan(comment, lowered, pos, e.Canonical),
			Confidence:  x.conf.Canonical,
			Method:      models.MethodExact,
		}, true
	}
	for _, a := range e.Aliases {
		if pos := strings.Index(lowered, a); pos >= 0 {
			return models.EntityMention{
				EntityID:    e.ID,
				EntityName:  e.Name,
				MatchedText: originalSpan(comment, lowered, pos, a),
				Confidence:  x.conf.Alias,
				Method:      models.MethodAlias,
			}, true
		}
	}
	return models.EntityMention{}, false
}

func (x *Extractor) partialMatch(e catalog.Entry, tokens map[string]bool, primed, hasPronoun bool) (models.EntityMention, bool) {
	mention := models.EntityMention{EntityID: e.ID, EntityName: e.Name}

	if tokens[e.FirstName] && (primed || x.index.FirstNameUnique(e.FirstName)) {
		mention.MatchedText = e.FirstName
		mention.Method = models.MethodFirstName
		mention.Confidence = x.conf.FirstNameUnique
		if primed {
			mention.Confidence = x.conf.FirstNamePrimed
		}
		return mention, true
	}

	if e.LastName != "" && tokens[e.LastName] && (primed || x.index.LastNameUnique(e.LastName)) {
		mention.MatchedText = e.LastName
		mention.Method = models.MethodLastName
		mention.Confidence = x.conf.LastNameUnique
		if primed {
			mention.Confidence = x.conf.LastNamePrimed
		}
		return mention, true
	}

	if primed && hasPronoun {
		mention.Method = models.MethodPronoun
		mention.Confidence = x.conf.Pronoun
		return mention, true
	}

	return mention, false
}

// originalSpan recovers the original-case text for a match found in the
// lower-cased copy, falling back to the term when byte offsets diverge.
func originalSpan(original, lowered string, pos int, term string) string {
	if len(original) != len(lowered) {
		return term
	}
	return original[pos : pos+len(term)]
}
