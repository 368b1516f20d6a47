package sentiment

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/raphaelgruber/signalroom/internal/models"
)

// Stage reports which recovery step produced an Analysis.
type Stage string

const (
	StageStrict   Stage = "strict"
	StageRepaired Stage = "repaired"
	StageFields   Stage = "fields"
)

var (
	validEmotions = set("joy", "anger", "sadness", "fear", "surprise", "disgust", "love", "neutral")
	validStances  = set("support", "oppose", "neutral")
)

// Analysis is the validated multi-signal output of the language model.
type Analysis struct {
	EntityScores      map[string]float64 `json:"entity_scores"`
	EntityConfidence  map[string]float64 `json:"entity_confidence"`
	Emotion           string             `json:"emotion"`
	Stance            string             `json:"stance"`
	Topics            []string           `json:"topics"`
	OtherEntities     []string           `json:"other_entities"`
	Sarcasm           bool               `json:"sarcasm"`
	Toxicity          float64            `json:"toxicity"`
	AmbiguousMentions []string           `json:"ambiguous_mentions"`
}

// Recover turns a model response into an Analysis through strict parsing,
// structural repair and finally field-level extraction. It never fails;
// unrecoverable fields take their empty or neutral value.
func Recover(raw string) (Analysis, Stage) {
	body := objectBody(raw)

	if m, err := parseStrict(body); err == nil {
		return fromMap(m), StageStrict
	}
	if m, ok := repairStructure(body); ok {
		return fromMap(m), StageRepaired
	}
	return fromMap(extractFields(raw)), StageFields
}

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*(```)?$")

// objectBody strips markdown fences and anything before the first brace.
func objectBody(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	if i := strings.IndexByte(s, '{'); i >= 0 {
		s = s[i:]
	}
	return strings.TrimSpace(s)
}

// parseStrict decodes the outermost JSON object.
func parseStrict(body string) (map[string]any, error) {
	end := strings.LastIndexByte(body, '}')
	if !strings.HasPrefix(body, "{") || end < 0 {
		return nil, errors.New("no json object")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(body[:end+1]), &m); err != nil {
		return nil, err
	}
	if !hasKnownField(m) {
		return nil, errors.New("json object has no analysis fields")
	}
	return m, nil
}

var knownFields = []string{
	"entity_scores", "entity_confidence", "emotion", "stance", "topics",
	"other_entities", "sarcasm", "toxicity", "ambiguous_mentions",
}

// hasKnownField rejects objects that parse but are not an analysis, such as
// a nested object picked up from surrounding prose.
func hasKnownField(m map[string]any) bool {
	for _, f := range knownFields {
		if _, ok := m[f]; ok {
			return true
		}
	}
	return false
}

// maxRepairCuts bounds how many trailing items repair will discard.
const maxRepairCuts = 64

// repairStructure closes a truncated object. It first closes the text as is,
// then retries after cutting back to each earlier item separator.
func repairStructure(body string) (map[string]any, bool) {
	if !strings.HasPrefix(body, "{") {
		return nil, false
	}

	candidates := []string{body}
	cuts := separatorOffsets(body)
	for i := len(cuts) - 1; i >= 0 && len(candidates) <= maxRepairCuts; i-- {
		candidates = append(candidates, body[:cuts[i]])
	}

	for _, c := range candidates {
		var m map[string]any
		if err := json.Unmarshal([]byte(closeUp(c)), &m); err == nil && hasKnownField(m) {
			return m, true
		}
	}
	return nil, false
}

// separatorOffsets returns the offsets of commas outside strings.
func separatorOffsets(s string) []int {
	var offsets []int
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == ',':
			offsets = append(offsets, i)
		}
	}
	return offsets
}

// closeUp terminates an open string, drops a dangling separator and appends
// the closers for every unmatched '{' and '['.
func closeUp(s string) string {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{', c == '[':
			stack = append(stack, c)
		case c == '}', c == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if escaped {
		b.WriteByte('\\')
	}
	if inString {
		b.WriteByte('"')
	}
	out := strings.TrimRight(b.String(), " \t\r\n")
	out = strings.TrimSuffix(out, ",")
	if strings.HasSuffix(out, ":") {
		out += "null"
	}

	b.Reset()
	b.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

var (
	numberPattern   = `(-?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?)`
	pairPattern     = regexp.MustCompile(`"([^"\\]+)"\s*:\s*` + numberPattern)
	quotedPattern   = regexp.MustCompile(`"([^"\\]*)"`)
	emotionPattern  = regexp.MustCompile(`"emotion"\s*:\s*"([A-Za-z]+)"`)
	stancePattern   = regexp.MustCompile(`"stance"\s*:\s*"([A-Za-z]+)"`)
	toxicityPattern = regexp.MustCompile(`"toxicity"\s*:\s*` + numberPattern)
	sarcasmPattern  = regexp.MustCompile(`"sarcasm"\s*:\s*(true|false)`)
)

func objectPattern(field string) *regexp.Regexp {
	return regexp.MustCompile(`"` + field + `"\s*:\s*\{([^}]*)`)
}

func arrayPattern(field string) *regexp.Regexp {
	return regexp.MustCompile(`"` + field + `"\s*:\s*\[([^\]]*)`)
}

var (
	scoresPattern     = objectPattern("entity_scores")
	confidencePattern = objectPattern("entity_confidence")
	topicsPattern     = arrayPattern("topics")
	othersPattern     = arrayPattern("other_entities")
	ambiguousPattern  = arrayPattern("ambiguous_mentions")
)

// extractFields pulls individual fields out of text that is not parseable
// JSON, returning them in the same shape json.Unmarshal would.
func extractFields(raw string) map[string]any {
	m := make(map[string]any)

	for field, re := range map[string]*regexp.Regexp{
		"entity_scores":     scoresPattern,
		"entity_confidence": confidencePattern,
	} {
		if sub := re.FindStringSubmatch(raw); sub != nil {
			pairs := make(map[string]any)
			for _, p := range pairPattern.FindAllStringSubmatch(sub[1], -1) {
				if v, err := strconv.ParseFloat(p[2], 64); err == nil {
					pairs[p[1]] = v
				}
			}
			m[field] = pairs
		}
	}

	for field, re := range map[string]*regexp.Regexp{
		"topics":             topicsPattern,
		"other_entities":     othersPattern,
		"ambiguous_mentions": ambiguousPattern,
	} {
		if sub := re.FindStringSubmatch(raw); sub != nil {
			var items []any
			for _, q := range quotedPattern.FindAllStringSubmatch(sub[1], -1) {
				items = append(items, q[1])
			}
			m[field] = items
		}
	}

	if sub := emotionPattern.FindStringSubmatch(raw); sub != nil {
		m["emotion"] = sub[1]
	}
	if sub := stancePattern.FindStringSubmatch(raw); sub != nil {
		m["stance"] = sub[1]
	}
	if sub := toxicityPattern.FindStringSubmatch(raw); sub != nil {
		if v, err := strconv.ParseFloat(sub[1], 64); err == nil {
			m["toxicity"] = v
		}
	}
	if sub := sarcasmPattern.FindStringSubmatch(raw); sub != nil {
		m["sarcasm"] = sub[1] == "true"
	}
	return m
}

// fromMap validates a decoded response. Scores outside [-1,1] are dropped,
// confidences and toxicity are clamped, unknown labels become neutral and
// fields of the wrong shape become empty.
func fromMap(m map[string]any) Analysis {
	a := Analysis{
		EntityScores:      make(map[string]float64),
		EntityConfidence:  make(map[string]float64),
		Emotion:           models.LabelNeutral,
		Stance:            models.LabelNeutral,
		Topics:            []string{},
		OtherEntities:     []string{},
		AmbiguousMentions: []string{},
	}

	if scores, ok := m["entity_scores"].(map[string]any); ok {
		for name, v := range scores {
			f, ok := toFloat64(v)
			name = strings.TrimSpace(name)
			if !ok || name == "" || f < -1 || f > 1 {
				continue
			}
			a.EntityScores[name] = f
		}
	}
	if confs, ok := m["entity_confidence"].(map[string]any); ok {
		for name, v := range confs {
			f, ok := toFloat64(v)
			name = strings.TrimSpace(name)
			if !ok || name == "" {
				continue
			}
			a.EntityConfidence[name] = models.Clamp(f, 0, 1)
		}
	}

	if s, ok := m["emotion"].(string); ok && validEmotions[strings.ToLower(s)] {
		a.Emotion = strings.ToLower(s)
	}
	if s, ok := m["stance"].(string); ok && validStances[strings.ToLower(s)] {
		a.Stance = strings.ToLower(s)
	}

	a.Topics = toStrings(m["topics"])
	a.OtherEntities = toStrings(m["other_entities"])
	a.AmbiguousMentions = toStrings(m["ambiguous_mentions"])

	switch v := m["sarcasm"].(type) {
	case bool:
		a.Sarcasm = v
	case string:
		a.Sarcasm = strings.EqualFold(v, "true")
	}
	if f, ok := toFloat64(m["toxicity"]); ok {
		a.Toxicity = models.Clamp(f, 0, 1)
	}
	return a
}

// toFloat64 accepts finite numbers and numeric strings.
func toFloat64(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(n), 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toStrings keeps the non-empty strings of a list, de-duplicated.
func toStrings(v any) []string {
	out := []string{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	seen := make(map[string]bool)
	for _, it := range items {
		s, ok := it.(string)
		s = strings.TrimSpace(s)
		if !ok || s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
