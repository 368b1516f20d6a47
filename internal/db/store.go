package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/signalroom/internal/models"
	"github.com/raphaelgruber/signalroom/internal/store"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Store implements store.Store on SurrealDB.
type Store struct {
	client *Client
	logger *slog.Logger
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Admin = (*Store)(nil)
)

// Open connects, initializes the schema and returns a ready store.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	client, err := NewClient(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := client.InitSchema(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	return NewStore(client, log), nil
}

// NewStore wraps an already connected client.
func NewStore(client *Client, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{client: client, logger: log}
}

// Client returns the underlying connection.
func (s *Store) Client() *Client { return s.client }

// Close closes the connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

type entityDoc struct {
	ID        surrealmodels.RecordID `json:"id"`
	Name      string                 `json:"name"`
	Aliases   []string               `json:"aliases"`
	Type      string                 `json:"type"`
	Active    bool                   `json:"active"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

type commentDoc struct {
	ID          surrealmodels.RecordID `json:"id"`
	Text        string                 `json:"text"`
	Likes       int                    `json:"likes"`
	PostCaption *string                `json:"post_caption,omitempty"`
	PostedAt    time.Time              `json:"posted_at"`
	EnrichedAt  *time.Time             `json:"enriched_at,omitempty"`
}

type signalDoc struct {
	CommentID    string    `json:"comment_id"`
	EntityKey    string    `json:"entity_key"`
	Kind         string    `json:"kind"`
	Value        string    `json:"value"`
	NumericValue *float64  `json:"numeric_value,omitempty"`
	Weight       float64   `json:"weight"`
	Confidence   float64   `json:"confidence"`
	Model        string    `json:"model"`
	ExtractedAt  time.Time `json:"extracted_at"`
}

type discoveredDoc struct {
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	MentionCount   int       `json:"mention_count"`
	SampleMentions []string  `json:"sample_mentions"`
	Reviewed       bool      `json:"reviewed"`
}

// ListActiveEntities returns the active catalog ordered by name.
func (s *Store) ListActiveEntities(ctx context.Context) ([]models.MonitoredEntity, error) {
	results, err := surrealdb.Query[[]entityDoc](ctx, s.client.db, `
		SELECT * FROM monitored_entity WHERE active = true ORDER BY name, id
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}

	out := []models.MonitoredEntity{}
	for _, d := range first(results) {
		id, err := models.RecordIDString(d.ID)
		if err != nil {
			return nil, fmt.Errorf("list entities: %w", err)
		}
		out = append(out, models.MonitoredEntity{
			ID:        id,
			Name:      d.Name,
			Aliases:   d.Aliases,
			Type:      models.EntityType(d.Type),
			Active:    d.Active,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}
	return out, nil
}

// ListComments returns the comments a filter selects, oldest first.
func (s *Store) ListComments(ctx context.Context, filter models.CommentFilter) ([]models.Comment, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var where string
	vars := map[string]any{}
	switch {
	case len(filter.IDs) > 0:
		where = "WHERE record::id(id) IN $ids"
		vars["ids"] = filter.IDs
	case filter.Since != nil:
		where = "WHERE posted_at >= $since"
		vars["since"] = surrealmodels.CustomDateTime{Time: *filter.Since}
	case filter.OnlyUnenriched:
		where = "WHERE enriched_at = NONE"
	}
	limit := ""
	if filter.Limit > 0 {
		limit = "LIMIT $limit"
		vars["limit"] = filter.Limit
	}

	sql := fmt.Sprintf(`SELECT * FROM comment %s ORDER BY posted_at, id %s`, where, limit)
	results, err := surrealdb.Query[[]commentDoc](ctx, s.client.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	out := []models.Comment{}
	for _, d := range first(results) {
		id, err := models.RecordIDString(d.ID)
		if err != nil {
			return nil, fmt.Errorf("list comments: %w", err)
		}
		c := models.Comment{
			ID:         id,
			Text:       d.Text,
			Likes:      d.Likes,
			PostedAt:   d.PostedAt,
			EnrichedAt: d.EnrichedAt,
		}
		if d.PostCaption != nil {
			c.PostCaption = *d.PostCaption
		}
		out = append(out, c)
	}
	return out, nil
}

// ListSignals returns every signal recorded for a comment.
func (s *Store) ListSignals(ctx context.Context, commentID string) ([]models.Signal, error) {
	results, err := surrealdb.Query[[]signalDoc](ctx, s.client.db, `
		SELECT * FROM signal WHERE comment_id = $comment ORDER BY kind, entity_key, model
	`, map[string]any{"comment": commentID})
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}

	out := []models.Signal{}
	for _, d := range first(results) {
		sig := models.Signal{
			CommentID:    d.CommentID,
			Kind:         models.SignalKind(d.Kind),
			Value:        d.Value,
			NumericValue: d.NumericValue,
			Weight:       d.Weight,
			Confidence:   d.Confidence,
			Model:        d.Model,
			ExtractedAt:  d.ExtractedAt,
		}
		if d.EntityKey != "" {
			id := d.EntityKey
			sig.EntityID = &id
		}
		out = append(out, sig)
	}
	return out, nil
}

// ListUnreviewedDiscovered returns the review queue, most mentioned first.
func (s *Store) ListUnreviewedDiscovered(ctx context.Context, minMentions int) ([]models.DiscoveredEntity, error) {
	results, err := surrealdb.Query[[]discoveredDoc](ctx, s.client.db, `
		SELECT * FROM discovered_entity
		WHERE reviewed = false AND mention_count >= $min
		ORDER BY mention_count DESC, key
	`, map[string]any{"min": minMentions})
	if err != nil {
		return nil, fmt.Errorf("list discovered: %w", err)
	}

	out := []models.DiscoveredEntity{}
	for _, d := range first(results) {
		out = append(out, models.DiscoveredEntity{
			Name:           d.Name,
			Type:           models.DiscoveredType(d.Type),
			FirstSeen:      d.FirstSeen,
			LastSeen:       d.LastSeen,
			MentionCount:   d.MentionCount,
			SampleMentions: d.SampleMentions,
			Reviewed:       d.Reviewed,
		})
	}
	return out, nil
}

// UpsertEntity creates or replaces a catalog entry.
func (s *Store) UpsertEntity(ctx context.Context, e models.MonitoredEntity) error {
	if e.ID == "" {
		e.ID = models.Slugify(e.Name)
	}
	aliases := e.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	_, err := surrealdb.Query[any](ctx, s.client.db, `
		UPSERT type::record("monitored_entity", $id) SET
			name = $name,
			aliases = $aliases,
			type = $type,
			active = $active,
			updated_at = time::now()
	`, map[string]any{
		"id":      e.ID,
		"name":    e.Name,
		"aliases": aliases,
		"type":    string(e.Type),
		"active":  e.Active,
	})
	if err != nil {
		return fmt.Errorf("upsert entity %s: %w", e.ID, wrapQueryError(err))
	}
	return nil
}

// SaveComments inserts comments, replacing text, likes and caption of existing ids.
func (s *Store) SaveComments(ctx context.Context, comments []models.Comment) error {
	for _, c := range comments {
		caption := "post_caption = NONE"
		vars := map[string]any{
			"id":     c.ID,
			"text":   c.Text,
			"likes":  c.Likes,
			"posted": surrealmodels.CustomDateTime{Time: c.PostedAt},
		}
		if c.PostCaption != "" {
			caption = "post_caption = $caption"
			vars["caption"] = c.PostCaption
		}
		sql := fmt.Sprintf(`
			UPSERT type::record("comment", $id) SET
				text = $text,
				likes = $likes,
				%s,
				posted_at = $posted
		`, caption)
		if _, err := surrealdb.Query[any](ctx, s.client.db, sql, vars); err != nil {
			return fmt.Errorf("save comment %s: %w", c.ID, wrapQueryError(err))
		}
	}
	return nil
}

// Begin opens a batch. Statements are buffered and sent as one transaction on Commit.
func (s *Store) Begin(context.Context) (store.Batch, error) {
	return &batch{
		store:      s,
		vars:       map[string]any{},
		signals:    map[string]bool{},
		discovered: map[string]bool{},
	}, nil
}

type batch struct {
	store      *Store
	stmts      []string
	vars       map[string]any
	signals    map[string]bool
	discovered map[string]bool
	done       bool
}

// param registers a value under a statement-unique name and returns its reference.
func (b *batch) param(name string, v any) string {
	key := fmt.Sprintf("p%d_%s", len(b.stmts), name)
	b.vars[key] = v
	return "$" + key
}

func (b *batch) exists(ctx context.Context, table, id string) (bool, error) {
	results, err := surrealdb.Query[[]struct{ C int }](ctx, b.store.client.db,
		`SELECT count() AS c FROM type::record($table, $id)`,
		map[string]any{"table": table, "id": id})
	if err != nil {
		return false, err
	}
	rows := first(results)
	return len(rows) > 0 && rows[0].C > 0, nil
}

func (b *batch) UpsertSignal(ctx context.Context, s *models.Signal) (bool, error) {
	if b.done {
		return false, store.ErrBatchClosed
	}
	s.Normalize()
	key := s.Key()
	id := key.ID()

	created := !b.signals[id]
	if created {
		found, err := b.exists(ctx, "signal", id)
		if err != nil {
			return false, fmt.Errorf("check signal: %w", err)
		}
		created = !found
	}
	b.signals[id] = true

	extractedAt := s.ExtractedAt
	if extractedAt.IsZero() {
		extractedAt = time.Now().UTC()
	}
	numeric := "numeric_value = NONE"
	if s.NumericValue != nil {
		numeric = "numeric_value = " + b.param("num", *s.NumericValue)
	}

	b.stmts = append(b.stmts, fmt.Sprintf(`UPSERT type::record("signal", %s) SET
		comment_id = %s, entity_key = %s, kind = %s, model = %s,
		value = %s, %s, weight = %s, confidence = %s, extracted_at = %s`,
		b.param("id", id),
		b.param("comment", key.CommentID),
		b.param("entity", key.EntityID),
		b.param("kind", string(key.Kind)),
		b.param("model", key.Model),
		b.param("value", s.Value),
		numeric,
		b.param("weight", s.Weight),
		b.param("confidence", s.Confidence),
		b.param("at", surrealmodels.CustomDateTime{Time: extractedAt}),
	))
	return created, nil
}

func (b *batch) UpsertDiscovered(ctx context.Context, m models.DiscoveredMention, sample string, seenAt time.Time) (bool, error) {
	if b.done {
		return false, store.ErrBatchClosed
	}
	key := m.Key()
	if key == "" {
		return false, nil
	}

	created := !b.discovered[key]
	if created {
		found, err := b.exists(ctx, "discovered_entity", key)
		if err != nil {
			return false, fmt.Errorf("check discovered: %w", err)
		}
		created = !found
	}
	b.discovered[key] = true

	seen := b.param("seen", surrealmodels.CustomDateTime{Time: seenAt})
	b.stmts = append(b.stmts, fmt.Sprintf(`UPSERT type::record("discovered_entity", %s) SET
		key = %s,
		name = name ?? %s,
		type = type ?? %s,
		first_seen = first_seen ?? %s,
		last_seen = IF last_seen != NONE AND last_seen > %s THEN last_seen ELSE %s END,
		mention_count = (mention_count ?? 0) + 1,
		sample_mentions = array::slice(array::concat(sample_mentions ?? [], %s), 0, %d),
		reviewed = reviewed ?? false`,
		b.param("id", key),
		b.param("key", key),
		b.param("name", m.Name),
		b.param("type", string(m.Type)),
		seen, seen, seen,
		b.param("sample", models.AppendSample([]string{}, sample)),
		models.MaxSampleMentions,
	))
	return created, nil
}

func (b *batch) MarkEnriched(_ context.Context, commentID string, at time.Time) error {
	if b.done {
		return store.ErrBatchClosed
	}
	b.stmts = append(b.stmts, fmt.Sprintf(`UPDATE type::record("comment", %s) SET enriched_at = %s`,
		b.param("id", commentID),
		b.param("at", surrealmodels.CustomDateTime{Time: at}),
	))
	return nil
}

func (b *batch) Commit(ctx context.Context) error {
	if b.done {
		return store.ErrBatchClosed
	}
	b.done = true
	if len(b.stmts) == 0 {
		return nil
	}

	sql := "BEGIN TRANSACTION;\n" + strings.Join(b.stmts, ";\n") + ";\nCOMMIT TRANSACTION;"
	if _, err := surrealdb.Query[any](ctx, b.store.client.db, sql, b.vars); err != nil {
		return fmt.Errorf("commit %d statements: %w", len(b.stmts), wrapQueryError(err))
	}
	b.store.logger.Debug("batch committed", "statements", len(b.stmts))
	return nil
}

func (b *batch) Rollback(context.Context) error {
	if b.done {
		return store.ErrBatchClosed
	}
	b.done = true
	b.stmts = nil
	b.vars = nil
	return nil
}

func first[T any](results *[]surrealdb.QueryResult[[]T]) []T {
	if results == nil || len(*results) == 0 {
		return nil
	}
	return (*results)[0].Result
}
