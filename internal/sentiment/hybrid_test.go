package sentiment

import (
	"context"
	"testing"

	"github.com/raphaelgruber/signalroom/internal/metrics"
	"github.com/stretchr/testify/assert"
)

type fixedProvider struct {
	name   string
	result Result
	calls  int
}

func (p *fixedProvider) Name() string { return p.name }

func (p *fixedProvider) Score(context.Context, Input) Result {
	p.calls++
	return p.result
}

func TestHybridEscalation(t *testing.T) {
	tests := []struct {
		name     string
		fast     Result
		escalate bool
	}{
		{"confident and polarized", Result{Score: 0.8, Confidence: 0.8}, false},
		{"confident negative", Result{Score: -0.5, Confidence: 0.75}, false},
		{"low confidence", Result{Score: 0.9, Confidence: 0.6}, true},
		{"near neutral", Result{Score: 0.1, Confidence: 0.8}, true},
		{"near neutral negative", Result{Score: -0.19, Confidence: 0.8}, true},
		{"boundary values keep fast", Result{Score: 0.2, Confidence: 0.7}, false},
		{"error-free zero", Result{Score: 0, Confidence: 0.3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fast := &fixedProvider{name: "fast", result: tt.fast}
			fast.result.Model = "fast"
			heavy := &fixedProvider{name: "heavy", result: Result{Score: -0.7, Confidence: 0.9, Model: "heavy"}}
			m := metrics.NewCollector()
			h := NewHybrid(fast, heavy, DefaultEscalationPolicy()).WithMetrics(m)

			r := h.Score(context.Background(), Input{Text: "whatever"})

			assert.Equal(t, 1, fast.calls)
			if tt.escalate {
				assert.Equal(t, 1, heavy.calls)
				assert.Equal(t, "heavy", r.Model)
				assert.Equal(t, int64(1), m.Snapshot().Counters[metrics.CountEscalations])
			} else {
				assert.Equal(t, 0, heavy.calls)
				assert.Equal(t, "fast", r.Model)
				assert.Zero(t, m.Snapshot().Counters[metrics.CountEscalations])
			}
			assert.NotNil(t, m.Snapshot().ScoreFast)
		})
	}
}

func TestHybridCustomPolicy(t *testing.T) {
	fast := &fixedProvider{name: "fast", result: Result{Score: 0.15, Confidence: 0.65, Model: "fast"}}
	heavy := &fixedProvider{name: "heavy", result: Result{Model: "heavy"}}
	h := NewHybrid(fast, heavy, EscalationPolicy{MinConfidence: 0.6, NeutralBand: 0.1})

	r := h.Score(context.Background(), Input{})
	assert.Equal(t, "fast", r.Model)
	assert.Equal(t, 0, heavy.calls)
}

func TestHybridWithLexicon(t *testing.T) {
	gen := &fakeGenerator{content: `{"entity_scores": {"Zendaya": -0.6}, "entity_confidence": {"Zendaya": 0.9}, "sarcasm": true}`}
	h := NewHybrid(NewLexicon(), NewLLMScorer(gen, LLMOptions{}), DefaultEscalationPolicy())

	clear := h.Score(context.Background(), Input{Text: "love love love 😍"})
	assert.Equal(t, LexiconModel, clear.Model)
	assert.Equal(t, 0, gen.calls)

	sarcastic := h.Score(context.Background(), Input{Text: "oh great, another remake"})
	assert.Equal(t, "llm:fake-model", sarcastic.Model)
	assert.InDelta(t, -0.6, sarcastic.Score, 1e-9)
	assert.True(t, sarcastic.Analysis.Sarcasm)
	assert.Equal(t, 1, gen.calls)
}
