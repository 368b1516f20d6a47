package service

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/signalroom/internal/catalog"
	"github.com/raphaelgruber/signalroom/internal/extract"
	"github.com/raphaelgruber/signalroom/internal/metrics"
	"github.com/raphaelgruber/signalroom/internal/models"
	"github.com/raphaelgruber/signalroom/internal/sentiment"
)

// Discovered returns unreviewed discovered entities with at least minMentions sightings.
func (s *EnrichService) Discovered(ctx context.Context, minMentions int) ([]models.DiscoveredEntity, error) {
	if minMentions < 1 {
		minMentions = 1
	}
	out, err := s.store.ListUnreviewedDiscovered(ctx, minMentions)
	if err != nil {
		return nil, fmt.Errorf("list discovered: %w", err)
	}
	return out, nil
}

// Preview is a dry run of one comment through extraction and scoring.
type Preview struct {
	Mentions   []models.EntityMention     `json:"mentions"`
	Discovered []models.DiscoveredMention `json:"discovered"`
	Result     sentiment.Result           `json:"result"`
	Signals    []*models.Signal           `json:"signals"`
	Metrics    metrics.Snapshot           `json:"metrics"`
}

// Preview extracts and scores a comment against the current catalog without writing.
func (s *EnrichService) Preview(ctx context.Context, c models.Comment) (*Preview, error) {
	collector := metrics.NewCollector()
	provider, err := s.newProvider(collector)
	if err != nil {
		return nil, fmt.Errorf("select provider: %w", err)
	}
	entities, err := s.store.ListActiveEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	index := catalog.Build(entities)

	start := time.Now()
	res := extract.New(index, s.recognizer, s.conf, s.logger).Extract(c.Text, c.PostCaption)
	collector.Time(metrics.OpExtract, start)

	result := provider.Score(ctx, sentiment.Input{
		Text:         c.Text,
		Caption:      c.PostCaption,
		Likes:        c.Likes,
		CatalogNames: index.Names(),
	})

	if c.ID == "" {
		c.ID = "preview"
	}
	return &Preview{
		Mentions:   res.Mentions,
		Discovered: res.Discovered,
		Result:     result,
		Signals:    buildSignals(c, res.Mentions, result, models.EngagementWeight(c.Likes), s.now()),
		Metrics:    collector.Snapshot(),
	}, nil
}
