package sentiment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/raphaelgruber/signalroom/internal/llm"
	"github.com/raphaelgruber/signalroom/internal/metrics"
	"github.com/raphaelgruber/signalroom/internal/models"
	"golang.org/x/time/rate"
)

// Prompt truncation limits, in runes.
const (
	maxCommentChars = 1000
	maxCaptionChars = 500
)

// Generator produces a JSON response from a system and user prompt.
type Generator interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (*llm.Generation, error)
	Model() string
}

// LLMOptions configures an LLMScorer.
type LLMOptions struct {
	RequestsPerSecond float64 // 0 disables rate limiting
	Metrics           *metrics.Collector
	Logger            *slog.Logger
}

// LLMScorer issues one structured-extraction request per comment.
type LLMScorer struct {
	gen         Generator
	limiter     *rate.Limiter
	metrics     *metrics.Collector
	logger      *slog.Logger
	warnedFatal atomic.Bool
}

// NewLLMScorer creates a language-model scorer.
func NewLLMScorer(gen Generator, opts LLMOptions) *LLMScorer {
	s := &LLMScorer{gen: gen, metrics: opts.Metrics, logger: opts.Logger}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if opts.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return s
}

// Name returns the model id, "llm:<model>".
func (s *LLMScorer) Name() string {
	return "llm:" + s.gen.Model()
}

// Score implements Provider.
func (s *LLMScorer) Score(ctx context.Context, in Input) Result {
	model := s.Name()

	if strings.TrimSpace(in.Text) == "" {
		a := fromMap(nil)
		score, conf := aggregate(a)
		return Result{Score: score, Confidence: conf, Model: model, Analysis: &a}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			s.logger.Debug("rate limiter wait aborted", "model", model, "error", err)
			s.metrics.Incr(metrics.CountLLMErrors)
			return errorResult(model)
		}
	}

	gen, err := s.gen.GenerateJSON(ctx, systemPrompt, userPrompt(in))
	if err != nil {
		s.metrics.Incr(metrics.CountLLMErrors)
		if llm.IsFatal(err) && s.warnedFatal.CompareAndSwap(false, true) {
			s.logger.Warn("language model unavailable, scoring falls back to neutral", "model", model, "error", err)
		} else {
			s.logger.Debug("language model call failed", "model", model, "error", err)
		}
		return errorResult(model)
	}
	s.metrics.RecordLLMUsage(metrics.OpLLMGenerate, gen.Duration, gen.InputTokens, gen.OutputTokens)

	analysis, stage := Recover(gen.Content)
	switch stage {
	case StageRepaired:
		s.metrics.Incr(metrics.CountRecoveredJSON)
		s.logger.Debug("repaired truncated model response", "model", model)
	case StageFields:
		s.metrics.Incr(metrics.CountRegexFallback)
		s.logger.Debug("model response not parseable, extracted fields", "model", model)
	}

	score, conf := aggregate(analysis)
	return Result{Score: score, Confidence: conf, Model: model, Analysis: &analysis}
}

// aggregate derives the comment-level score and confidence from entity scores.
func aggregate(a Analysis) (float64, float64) {
	if len(a.EntityScores) == 0 {
		return 0, 0.3
	}

	var sum, confSum float64
	confN := 0
	for name, v := range a.EntityScores {
		sum += v
		if c, ok := a.EntityConfidence[name]; ok {
			confSum += c
			confN++
		}
	}
	score := models.Clamp(sum/float64(len(a.EntityScores)), -1, 1)
	if confN == 0 {
		return score, 0.5
	}
	return score, models.Clamp(confSum/float64(confN), 0, 1)
}

const systemPrompt = `You analyze short social media comments about public figures, shows and brands.
Return a single JSON object with exactly these fields:
{
  "entity_scores": {"<entity name>": <sentiment from -1.0 to 1.0>},
  "entity_confidence": {"<entity name>": <confidence from 0.0 to 1.0>},
  "emotion": "joy|anger|sadness|fear|surprise|disgust|love|neutral",
  "stance": "support|oppose|neutral",
  "topics": ["<short topic>"],
  "other_entities": ["<named person or organization not in the reference list>"],
  "sarcasm": true|false,
  "toxicity": <0.0 to 1.0>,
  "ambiguous_mentions": ["<name you could not attribute confidently>"]
}
Rules:
- Score only entities actually discussed in this comment. Never score an entity only because the caption names it.
- Full-name mention: confidence 0.9 or higher. First name with strong context: 0.7 to 0.9.
- Weak context below 0.7: list the name in ambiguous_mentions instead of scoring it.
- Watch for sarcasm; a sarcastic compliment is negative.
- Output JSON only, no commentary.`

func userPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Comment: %s\n", models.Truncate(in.Text, maxCommentChars))
	if strings.TrimSpace(in.Caption) != "" {
		fmt.Fprintf(&b, "Post caption: %s\n", models.Truncate(in.Caption, maxCaptionChars))
	}
	fmt.Fprintf(&b, "Likes: %d\n", in.Likes)
	if len(in.CatalogNames) > 0 {
		fmt.Fprintf(&b, "Reference entities (for name matching only): %s\n", strings.Join(in.CatalogNames, ", "))
	}
	return b.String()
}
