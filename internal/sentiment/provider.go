// Package sentiment scores comment text with interchangeable strategies:
// a fast lexicon scorer, a language-model scorer and a hybrid that escalates
// from the first to the second under uncertainty.
package sentiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/raphaelgruber/signalroom/internal/metrics"
)

// Kind names a scoring strategy.
type Kind string

const (
	KindFast   Kind = "fast"
	KindLLM    Kind = "llm"
	KindHybrid Kind = "hybrid"
)

// ErrUnknownProvider is returned for a strategy name outside the closed set.
var ErrUnknownProvider = errors.New("unknown sentiment provider")

// ParseKind validates a strategy name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindFast, KindLLM, KindHybrid:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

// Input is what a provider sees of one comment.
type Input struct {
	Text         string
	Caption      string
	Likes        int
	CatalogNames []string
}

// Result is a comment-level sentiment score.
// Analysis is set only when a language model produced the result.
type Result struct {
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	Model      string    `json:"model"`
	Analysis   *Analysis `json:"analysis,omitempty"`
}

// Provider scores one comment. Score never fails: errors become a
// zero-score, zero-confidence result tagged with an error model id.
type Provider interface {
	Name() string
	Score(ctx context.Context, in Input) Result
}

// Deps are the building blocks New selects from.
type Deps struct {
	Fast    *Lexicon   // defaults to NewLexicon()
	LLM     *LLMScorer // required for KindLLM and KindHybrid
	Policy  EscalationPolicy
	Metrics *metrics.Collector
}

// New returns the provider for kind. It is called once per run.
func New(kind Kind, deps Deps) (Provider, error) {
	fast := deps.Fast
	if fast == nil {
		fast = NewLexicon()
	}
	switch kind {
	case KindFast:
		return fast, nil
	case KindLLM, KindHybrid:
		if deps.LLM == nil {
			return nil, fmt.Errorf("%s provider requires a language model", kind)
		}
		if kind == KindLLM {
			return deps.LLM, nil
		}
		return NewHybrid(fast, deps.LLM, deps.Policy).WithMetrics(deps.Metrics), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, kind)
}

func errorResult(model string) Result {
	return Result{Score: 0, Confidence: 0, Model: model + ":error"}
}
