// Package sqlstore implements the store contract on GORM for PostgreSQL and SQLite.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/signalroom/internal/models"
	"github.com/raphaelgruber/signalroom/internal/store"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// signalUpdates are the columns an upsert refreshes on an existing key.
var signalUpdates = []string{"value", "numeric_value", "weight", "confidence", "extracted_at", "updated_at"}

// Store is a GORM-backed store.Store.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Admin = (*Store)(nil)
)

// Open connects with the given driver and migrates the schema.
func Open(ctx context.Context, driver, dsn string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", store.ErrUnknownStore, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewSlogLogger(log, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if driver == DriverSQLite {
		// One connection keeps ":memory:" databases shared and serializes writers.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&entityRow{},
		&commentRow{},
		&signalRow{},
		&discoveredRow{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Debug("sql store ready", "driver", driver)
	return &Store{db: db, logger: log}, nil
}

// Close releases the connection pool.
func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListActiveEntities returns the active catalog ordered by name.
func (s *Store) ListActiveEntities(ctx context.Context) ([]models.MonitoredEntity, error) {
	var rows []entityRow
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("name, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	out := make([]models.MonitoredEntity, 0, len(rows))
	for _, r := range rows {
		e, err := r.model()
		if err != nil {
			return nil, fmt.Errorf("list entities: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// ListComments returns the comments a filter selects, oldest first.
func (s *Store) ListComments(ctx context.Context, filter models.CommentFilter) ([]models.Comment, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Model(&commentRow{})
	switch {
	case len(filter.IDs) > 0:
		q = q.Where("id IN ?", filter.IDs)
	case filter.Since != nil:
		q = q.Where("posted_at >= ?", *filter.Since)
	case filter.OnlyUnenriched:
		q = q.Where("enriched_at IS NULL")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []commentRow
	if err := q.Order("posted_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	out := make([]models.Comment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

// ListSignals returns every signal for a comment.
func (s *Store) ListSignals(ctx context.Context, commentID string) ([]models.Signal, error) {
	var rows []signalRow
	if err := s.db.WithContext(ctx).
		Where("comment_id = ?", commentID).
		Order("kind, entity_key, model").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	out := make([]models.Signal, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

// ListUnreviewedDiscovered returns the review queue, most mentioned first.
func (s *Store) ListUnreviewedDiscovered(ctx context.Context, minMentions int) ([]models.DiscoveredEntity, error) {
	var rows []discoveredRow
	if err := s.db.WithContext(ctx).
		Where("reviewed = ? AND mention_count >= ?", false, minMentions).
		Order("mention_count DESC, key").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list discovered: %w", err)
	}
	out := make([]models.DiscoveredEntity, 0, len(rows))
	for _, r := range rows {
		d, err := r.model()
		if err != nil {
			return nil, fmt.Errorf("list discovered: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}

// UpsertEntity creates or replaces a catalog entry.
func (s *Store) UpsertEntity(ctx context.Context, e models.MonitoredEntity) error {
	if e.ID == "" {
		e.ID = models.Slugify(e.Name)
	}
	row := toEntityRow(e)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "aliases", "type", "active", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert entity %s: %w", e.ID, err)
	}
	return nil
}

// SaveComments inserts comments, replacing text, likes and caption of existing ids.
func (s *Store) SaveComments(ctx context.Context, comments []models.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	rows := make([]commentRow, 0, len(comments))
	for _, c := range comments {
		rows = append(rows, toCommentRow(c))
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "likes", "post_caption", "posted_at"}),
	}).CreateInBatches(rows, 100).Error
	if err != nil {
		return fmt.Errorf("save comments: %w", err)
	}
	return nil
}

// Begin opens a transaction-backed batch. The transaction outlives ctx so a
// cancelled run can still commit the comments it finished.
func (s *Store) Begin(ctx context.Context) (store.Batch, error) {
	tx := s.db.WithContext(context.WithoutCancel(ctx)).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin: %w", tx.Error)
	}
	return &batch{tx: tx}, nil
}

type batch struct {
	tx   *gorm.DB
	done bool
}

func (b *batch) UpsertSignal(ctx context.Context, s *models.Signal) (bool, error) {
	if b.done {
		return false, store.ErrBatchClosed
	}
	s.Normalize()
	row := toSignalRow(s)

	var existing int64
	if err := b.tx.WithContext(ctx).Model(&signalRow{}).
		Where("comment_id = ? AND entity_key = ? AND kind = ? AND model = ?", row.CommentID, row.EntityKey, row.Kind, row.Model).
		Count(&existing).Error; err != nil {
		return false, fmt.Errorf("check signal: %w", err)
	}

	err := b.tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "comment_id"}, {Name: "entity_key"}, {Name: "kind"}, {Name: "model"},
		},
		DoUpdates: clause.AssignmentColumns(signalUpdates),
	}).Create(&row).Error
	if err != nil {
		return false, fmt.Errorf("upsert signal %s: %w", row.ID, err)
	}
	return existing == 0, nil
}

func (b *batch) UpsertDiscovered(ctx context.Context, m models.DiscoveredMention, sample string, seenAt time.Time) (bool, error) {
	if b.done {
		return false, store.ErrBatchClosed
	}
	key := m.Key()
	if key == "" {
		return false, nil
	}

	var row discoveredRow
	err := b.tx.WithContext(ctx).Where("key = ?", key).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = discoveredRow{
			Key:            key,
			Name:           m.Name,
			Type:           string(m.Type),
			FirstSeen:      seenAt,
			LastSeen:       seenAt,
			MentionCount:   1,
			SampleMentions: marshalStrings(models.AppendSample(nil, sample)),
		}
		if err := b.tx.WithContext(ctx).Create(&row).Error; err != nil {
			return false, fmt.Errorf("create discovered %q: %w", key, err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("find discovered %q: %w", key, err)
	}

	existing, err := unmarshalStrings(row.SampleMentions)
	if err != nil {
		return false, fmt.Errorf("discovered %q samples: %w", key, err)
	}
	samples := models.AppendSample(existing, sample)
	lastSeen := row.LastSeen
	if seenAt.After(lastSeen) {
		lastSeen = seenAt
	}
	err = b.tx.WithContext(ctx).Model(&discoveredRow{}).Where("key = ?", key).Updates(map[string]any{
		"mention_count":   gorm.Expr("mention_count + 1"),
		"last_seen":       lastSeen,
		"sample_mentions": marshalStrings(samples),
	}).Error
	if err != nil {
		return false, fmt.Errorf("update discovered %q: %w", key, err)
	}
	return false, nil
}

func (b *batch) MarkEnriched(ctx context.Context, commentID string, at time.Time) error {
	if b.done {
		return store.ErrBatchClosed
	}
	err := b.tx.WithContext(ctx).Model(&commentRow{}).Where("id = ?", commentID).Update("enriched_at", at).Error
	if err != nil {
		return fmt.Errorf("mark enriched %s: %w", commentID, err)
	}
	return nil
}

func (b *batch) Commit(context.Context) error {
	if b.done {
		return store.ErrBatchClosed
	}
	b.done = true
	if err := b.tx.Commit().Error; err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (b *batch) Rollback(context.Context) error {
	if b.done {
		return store.ErrBatchClosed
	}
	b.done = true
	if err := b.tx.Rollback().Error; err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
