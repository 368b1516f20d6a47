package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/signalroom/internal/config"
	"github.com/raphaelgruber/signalroom/internal/db"
	"github.com/raphaelgruber/signalroom/internal/extract"
	"github.com/raphaelgruber/signalroom/internal/llm"
	"github.com/raphaelgruber/signalroom/internal/metrics"
	"github.com/raphaelgruber/signalroom/internal/sentiment"
	"github.com/raphaelgruber/signalroom/internal/service"
	"github.com/raphaelgruber/signalroom/internal/store"
	"github.com/raphaelgruber/signalroom/internal/store/sqlstore"
)

// openStore connects the backend named by cfg.Store.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.Store {
	case config.StoreSurreal:
		return db.Open(ctx, db.ConfigFrom(cfg), log)
	case config.StorePostgres:
		return sqlstore.Open(ctx, sqlstore.DriverPostgres, cfg.DSN, log)
	case config.StoreSQLite:
		return sqlstore.Open(ctx, sqlstore.DriverSQLite, cfg.DSN, log)
	}
	return nil, fmt.Errorf("%w: %q", store.ErrUnknownStore, cfg.Store)
}

// providerFactory builds the sentiment provider for a run. The language
// model is only constructed for kinds that call it.
func providerFactory(ctx context.Context, cfg config.Config, t config.Tunables, kind sentiment.Kind, log *slog.Logger) service.ProviderFactory {
	return func(m *metrics.Collector) (sentiment.Provider, error) {
		deps := sentiment.Deps{
			Policy: sentiment.EscalationPolicy{
				MinConfidence: t.Escalation.MinConfidence,
				NeutralBand:   t.Escalation.NeutralBand,
			},
			Metrics: m,
		}
		if kind != sentiment.KindFast {
			model, err := llm.NewModel(ctx, cfg)
			if err != nil {
				return nil, fmt.Errorf("init model: %w", err)
			}
			deps.LLM = sentiment.NewLLMScorer(model, sentiment.LLMOptions{
				RequestsPerSecond: cfg.LLMRateLimit,
				Metrics:           m,
				Logger:            log,
			})
		}
		return sentiment.New(kind, deps)
	}
}

// newEnrichService wires the configured store, provider and tunables.
func newEnrichService(ctx context.Context, providerName string, batchSize int) (*service.EnrichService, error) {
	if providerName == "" {
		providerName = cfg.SentimentProvider
	}
	kind, err := sentiment.ParseKind(providerName)
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = cfg.BatchSize
	}

	conf := extract.Confidences(tunables.Mentions)
	return service.NewEnrichService(signalStore, providerFactory(ctx, cfg, tunables, kind, logger), service.EnrichOptions{
		BatchSize:   batchSize,
		Recognizer:  extract.NewProseRecognizer(),
		Confidences: &conf,
		Logger:      logger,
	}), nil
}
