package sentiment

import (
	"context"
	"strings"
	"unicode"

	"github.com/raphaelgruber/signalroom/internal/models"
)

// LexiconModel is the model id of the fast scorer.
const LexiconModel = "lexicon-v1"

var positiveTerms = set(
	"love", "loved", "loving", "amazing", "queen", "king", "iconic", "slay", "slayed", "slaying",
	"obsessed", "best", "goat", "beautiful", "stunning", "gorgeous", "talented", "legend",
	"legendary", "fire", "perfect", "awesome", "great", "incredible", "adorable", "cute",
	"brilliant", "wonderful", "favorite", "fav", "fave", "hilarious", "underrated", "masterpiece",
	"banger", "vibes", "proud", "deserve", "deserves", "deserved",
)

var negativeTerms = set(
	"hate", "hated", "hating", "worst", "awful", "terrible", "cringe", "cringey", "flop", "flopped",
	"boring", "overrated", "fake", "trash", "ugly", "annoying", "disgusting", "embarrassing", "mid",
	"problematic", "cancel", "cancelled", "canceled", "toxic", "gross", "horrible", "disappointing",
	"pathetic", "rude", "clown", "shameful", "nasty", "lame", "sucks", "unfollow",
)

var positiveEmoji = []string{
	"❤", "😍", "🥰", "😘", "🔥", "👏", "🙌", "💯", "😊", "✨", "💕", "💖", "💜", "👑", "🥹", "😁", "🤩", "💗", "💙", "😻",
}

var negativeEmoji = []string{
	"😡", "🤮", "🙄", "😒", "👎", "💔", "😤", "🤢", "😠", "🤡", "😬", "💩",
}

// polarity is a word's general polarity in [-1,1] and subjectivity in [0,1].
type polarity struct {
	pol  float64
	subj float64
}

var generalLexicon = map[string]polarity{
	"good": {0.7, 0.6}, "nice": {0.6, 1.0}, "happy": {0.8, 1.0}, "glad": {0.5, 1.0},
	"fun": {0.3, 0.2}, "funny": {0.25, 1.0}, "cool": {0.35, 0.65}, "sweet": {0.35, 0.65},
	"excellent": {1.0, 1.0}, "fantastic": {0.4, 0.9}, "lovely": {0.5, 0.75}, "enjoy": {0.4, 0.5},
	"talent": {0.5, 0.6}, "win": {0.8, 0.4}, "won": {0.8, 0.4}, "like": {0.2, 0.4},
	"bad": {-0.7, 0.67}, "sad": {-0.5, 1.0}, "poor": {-0.4, 0.6}, "weird": {-0.5, 1.0},
	"stupid": {-0.8, 1.0}, "dumb": {-0.375, 0.5}, "wrong": {-0.5, 0.9}, "ridiculous": {-0.33, 1.0},
	"angry": {-0.5, 1.0}, "dull": {-0.3, 0.6}, "lose": {-0.4, 0.3}, "lost": {-0.4, 0.3},
	"great": {0.8, 0.75}, "love": {0.5, 0.6}, "amazing": {0.6, 0.9}, "beautiful": {0.85, 1.0},
	"perfect": {1.0, 1.0}, "awesome": {1.0, 1.0}, "best": {1.0, 0.3}, "cute": {0.5, 1.0},
	"hate": {-0.8, 0.9}, "worst": {-1.0, 1.0}, "awful": {-1.0, 1.0}, "terrible": {-1.0, 1.0},
	"boring": {-1.0, 1.0}, "ugly": {-0.7, 1.0}, "fake": {-0.5, 1.0}, "annoying": {-0.8, 0.9},
}

var negators = set("not", "no", "never", "isnt", "isn", "dont", "don", "doesnt", "didnt", "wasnt", "cant", "aint", "nothing")

var intensifiers = map[string]float64{
	"very": 1.3, "so": 1.3, "really": 1.2, "extremely": 1.5, "super": 1.3, "totally": 1.2, "literally": 1.1,
}

// Lexicon is the fast scorer: domain term and emoji counts, with a generic
// polarity heuristic for low-signal text.
type Lexicon struct{}

// NewLexicon returns the fast scorer.
func NewLexicon() *Lexicon {
	return &Lexicon{}
}

// Name returns the model id.
func (l *Lexicon) Name() string {
	return LexiconModel
}

// Score implements Provider.
func (l *Lexicon) Score(_ context.Context, in Input) Result {
	score, conf := l.score(in.Text)
	return Result{Score: score, Confidence: conf, Model: LexiconModel}
}

func (l *Lexicon) score(text string) (float64, float64) {
	lowered := strings.ToLower(text)
	words := wordTokens(lowered)

	pos, neg := 0, 0
	for _, w := range words {
		switch {
		case positiveTerms[w]:
			pos++
		case negativeTerms[w]:
			neg++
		}
	}
	for _, e := range positiveEmoji {
		pos += strings.Count(text, e)
	}
	for _, e := range negativeEmoji {
		neg += strings.Count(text, e)
	}

	signals := pos + neg
	if signals >= 2 {
		score := float64(pos-neg) / float64(signals)
		density := float64(signals) / float64(max(len(words), 1))
		conf := min(0.8, 0.5+0.5*density)
		return score, conf
	}

	pol, subj := generalPolarity(words)
	return models.Clamp(pol, -1, 1), 0.3 + 0.4*models.Clamp(subj, 0, 1)
}

// generalPolarity averages the polarity and subjectivity of known words,
// applying a preceding intensifier and flipping under a preceding negator.
func generalPolarity(words []string) (float64, float64) {
	var polSum, subjSum float64
	n := 0
	for i, w := range words {
		p, ok := generalLexicon[w]
		if !ok {
			continue
		}
		pol, subj := p.pol, p.subj
		if i > 0 {
			if m, ok := intensifiers[words[i-1]]; ok {
				pol *= m
				subj = min(1, subj*m)
			}
		}
		for j := max(0, i-3); j < i; j++ {
			if negators[words[j]] {
				pol *= -0.5
				break
			}
		}
		polSum += pol
		subjSum += subj
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return polSum / float64(n), subjSum / float64(n)
}

// wordTokens splits on anything but letters and digits, dropping apostrophes
// so contractions like "isn't" become "isnt".
func wordTokens(s string) []string {
	s = strings.NewReplacer("'", "", "’", "").Replace(s)
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
