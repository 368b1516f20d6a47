// Package service runs enrichment passes over stored comments.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/signalroom/internal/catalog"
	"github.com/raphaelgruber/signalroom/internal/extract"
	"github.com/raphaelgruber/signalroom/internal/metrics"
	"github.com/raphaelgruber/signalroom/internal/models"
	"github.com/raphaelgruber/signalroom/internal/sentiment"
	"github.com/raphaelgruber/signalroom/internal/store"
)

// DefaultBatchSize is the number of comments per commit window.
const DefaultBatchSize = 50

// ProviderFactory builds the sentiment provider for one run, wired to that run's collector.
type ProviderFactory func(m *metrics.Collector) (sentiment.Provider, error)

// EnrichStats summarizes one run. Counts only include committed batches.
type EnrichStats struct {
	RunID              string           `json:"run_id"`
	Provider           string           `json:"provider"`
	CommentsSelected   int              `json:"comments_selected"`
	CommentsProcessed  int              `json:"comments_processed"`
	SignalsCreated     int              `json:"signals_created"`
	SignalsUpdated     int              `json:"signals_updated"`
	EntitiesDiscovered int              `json:"entities_discovered"`
	BatchesCommitted   int              `json:"batches_committed"`
	Errors             []string         `json:"errors,omitempty"`
	Metrics            metrics.Snapshot `json:"metrics"`
}

// EnrichOptions tune an EnrichService. Zero values take defaults.
type EnrichOptions struct {
	BatchSize   int
	Recognizer  extract.Recognizer
	Confidences *extract.Confidences
	Logger      *slog.Logger
	Now         func() time.Time
}

// EnrichService turns comments into signals and discovered-entity sightings.
type EnrichService struct {
	store       store.Store
	newProvider ProviderFactory
	batchSize   int
	recognizer  extract.Recognizer
	conf        extract.Confidences
	logger      *slog.Logger
	now         func() time.Time
}

// NewEnrichService creates an enrichment service over a store.
func NewEnrichService(st store.Store, newProvider ProviderFactory, opts EnrichOptions) *EnrichService {
	s := &EnrichService{
		store:       st,
		newProvider: newProvider,
		batchSize:   opts.BatchSize,
		recognizer:  opts.Recognizer,
		conf:        extract.DefaultConfidences(),
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if opts.Confidences != nil {
		s.conf = *opts.Confidences
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Enrich processes every comment the filter selects. Per-comment write
// failures drop the open batch and the run continues; cancellation commits
// the open batch and returns ctx.Err().
func (s *EnrichService) Enrich(ctx context.Context, filter models.CommentFilter) (*EnrichStats, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()
	provider, err := s.newProvider(collector)
	if err != nil {
		return nil, fmt.Errorf("select provider: %w", err)
	}

	stats := &EnrichStats{RunID: uuid.NewString(), Provider: provider.Name()}
	log := s.logger.With("run_id", stats.RunID, "provider", stats.Provider)

	start := time.Now()
	entities, err := s.store.ListActiveEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	comments, err := s.store.ListComments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	collector.Time(metrics.OpStoreQuery, start)
	stats.CommentsSelected = len(comments)

	index := catalog.Build(entities)
	r := &run{
		svc:       s,
		stats:     stats,
		metrics:   collector,
		log:       log,
		provider:  provider,
		extractor: extract.New(index, s.recognizer, s.conf, log),
		names:     index.Names(),
	}
	log.Info("enrichment started", "comments", len(comments), "entities", index.Len(), "batch_size", s.batchSize)

	for _, c := range comments {
		if ctx.Err() != nil {
			break
		}
		if err := r.process(ctx, c); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				break
			}
			r.fail(ctx, fmt.Errorf("comment %s: %w", c.ID, err))
			continue
		}
		if r.pending.comments >= s.batchSize {
			r.commit(ctx)
		}
	}

	if err := ctx.Err(); err != nil {
		r.commit(context.WithoutCancel(ctx))
		stats.Metrics = collector.Snapshot()
		log.Warn("enrichment cancelled", "processed", stats.CommentsProcessed)
		return stats, err
	}
	r.commit(ctx)

	stats.Metrics = collector.Snapshot()
	log.Info("enrichment finished",
		"processed", stats.CommentsProcessed,
		"signals_created", stats.SignalsCreated,
		"signals_updated", stats.SignalsUpdated,
		"discovered", stats.EntitiesDiscovered,
		"errors", len(stats.Errors),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return stats, nil
}

// tally holds the counts of the open batch until it commits.
type tally struct {
	comments   int
	created    int
	updated    int
	discovered int
}

type run struct {
	svc       *EnrichService
	stats     *EnrichStats
	metrics   *metrics.Collector
	log       *slog.Logger
	provider  sentiment.Provider
	extractor *extract.Extractor
	names     []string

	batch   store.Batch
	pending tally
	seq     int
}

func (r *run) process(ctx context.Context, c models.Comment) error {
	if r.batch == nil {
		b, err := r.svc.store.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
		r.batch = b
	}

	start := time.Now()
	res := r.extractor.Extract(c.Text, c.PostCaption)
	r.metrics.Time(metrics.OpExtract, start)

	result := r.provider.Score(ctx, sentiment.Input{
		Text:         c.Text,
		Caption:      c.PostCaption,
		Likes:        c.Likes,
		CatalogNames: r.names,
	})

	// A cancelled run keeps the open batch clean of a half-written comment.
	if err := ctx.Err(); err != nil {
		return err
	}
	r.noteModelNames(c.ID, result.Analysis)

	now := r.svc.now()
	for _, d := range res.Discovered {
		created, err := r.timedUpsert(func() (bool, error) {
			return r.batch.UpsertDiscovered(ctx, d, c.Text, now)
		})
		if err != nil {
			return err
		}
		if created {
			r.pending.discovered++
		}
	}

	for _, sig := range buildSignals(c, res.Mentions, result, models.EngagementWeight(c.Likes), now) {
		created, err := r.timedUpsert(func() (bool, error) {
			return r.batch.UpsertSignal(ctx, sig)
		})
		if err != nil {
			return err
		}
		if created {
			r.pending.created++
		} else {
			r.pending.updated++
		}
	}

	if err := r.batch.MarkEnriched(ctx, c.ID, now); err != nil {
		return err
	}
	r.pending.comments++
	r.log.Debug("comment enriched", "comment_id", c.ID, "mentions", len(res.Mentions), "model", result.Model)
	return nil
}

// noteModelNames counts and logs the names the model saw but could not
// attribute. They are untyped, so they never enter the discovered queue.
func (r *run) noteModelNames(commentID string, a *sentiment.Analysis) {
	if a == nil || len(a.OtherEntities)+len(a.AmbiguousMentions) == 0 {
		return
	}
	for range a.OtherEntities {
		r.metrics.Incr(metrics.CountOtherEntities)
	}
	for range a.AmbiguousMentions {
		r.metrics.Incr(metrics.CountAmbiguous)
	}
	r.log.Debug("model reported unattributed names",
		"comment_id", commentID,
		"other_entities", a.OtherEntities,
		"ambiguous_mentions", a.AmbiguousMentions)
}

func (r *run) timedUpsert(fn func() (bool, error)) (bool, error) {
	start := time.Now()
	created, err := fn()
	r.metrics.Time(metrics.OpStoreUpsert, start)
	return created, err
}

// commit closes the open batch and folds its tally into the stats.
func (r *run) commit(ctx context.Context) {
	if r.batch == nil {
		return
	}
	b := r.batch
	r.batch = nil
	r.seq++

	start := time.Now()
	err := b.Commit(ctx)
	r.metrics.Time(metrics.OpStoreCommit, start)
	if err != nil {
		r.metrics.Incr(metrics.CountBatchFailures)
		r.recordError(fmt.Errorf("commit batch %d: %w", r.seq, err))
		if rbErr := b.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, store.ErrBatchClosed) {
			r.log.Debug("rollback after failed commit", "batch", r.seq, "error", rbErr)
		}
		r.pending = tally{}
		return
	}

	r.stats.BatchesCommitted++
	r.stats.CommentsProcessed += r.pending.comments
	r.stats.SignalsCreated += r.pending.created
	r.stats.SignalsUpdated += r.pending.updated
	r.stats.EntitiesDiscovered += r.pending.discovered
	r.log.Info("batch committed", "batch", r.seq, "comments", r.pending.comments, "signals", r.pending.created+r.pending.updated)
	r.pending = tally{}
}

// fail drops the open batch after a write error.
func (r *run) fail(ctx context.Context, err error) {
	r.recordError(err)
	if r.batch == nil {
		return
	}
	r.metrics.Incr(metrics.CountBatchFailures)
	if rbErr := r.batch.Rollback(ctx); rbErr != nil {
		r.log.Debug("rollback failed", "error", rbErr)
	}
	r.batch = nil
	r.seq++
	r.pending = tally{}
}

func (r *run) recordError(err error) {
	r.stats.Errors = append(r.stats.Errors, err.Error())
	r.log.Error("enrichment error", "error", err)
}

// buildSignals maps one scored comment onto its signal rows.
func buildSignals(c models.Comment, mentions []models.EntityMention, result sentiment.Result, weight float64, at time.Time) []*models.Signal {
	newSignal := func(entityID *string, kind models.SignalKind, value string, numeric *float64, confidence float64) *models.Signal {
		s := &models.Signal{
			CommentID:    c.ID,
			EntityID:     entityID,
			Kind:         kind,
			Value:        value,
			NumericValue: numeric,
			Weight:       weight,
			Confidence:   confidence,
			Model:        result.Model,
			ExtractedAt:  at,
		}
		s.Normalize()
		return s
	}

	score := result.Score
	out := []*models.Signal{
		newSignal(nil, models.KindSentiment, models.SentimentLabel(score), &score, result.Confidence),
	}

	// Entity rows share the comment score; only the confidence is scoped to the mention.
	for _, m := range mentions {
		id := m.EntityID
		out = append(out, newSignal(&id, models.KindSentiment, models.SentimentLabel(score), &score, m.Confidence*result.Confidence))
	}

	a := result.Analysis
	if a == nil {
		return out
	}
	tox := a.Toxicity
	out = append(out,
		newSignal(nil, models.KindEmotion, a.Emotion, nil, result.Confidence),
		newSignal(nil, models.KindStance, a.Stance, nil, result.Confidence),
		newSignal(nil, models.KindToxicity, strconv.FormatFloat(tox, 'f', 2, 64), &tox, result.Confidence),
		newSignal(nil, models.KindSarcasm, strconv.FormatBool(a.Sarcasm), nil, result.Confidence),
	)
	if topics := topicValue(a.Topics); topics != "" {
		out = append(out, newSignal(nil, models.KindTopic, topics, nil, result.Confidence))
	}
	return out
}

// topicValue joins distinct lower-cased topics in sorted order.
func topicValue(topics []string) string {
	seen := make(map[string]bool, len(topics))
	var out []string
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return models.Truncate(strings.Join(out, ","), 255)
}
