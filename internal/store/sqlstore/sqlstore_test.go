package sqlstore

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/raphaelgruber/signalroom/internal/models"
	"github.com/raphaelgruber/signalroom/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, ":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func ptr[T any](v T) *T { return &v }

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "", nil)
	assert.ErrorIs(t, err, store.ErrUnknownStore)
}

func TestEntities(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertEntity(ctx, models.MonitoredEntity{
		Name: "Taylor Swift", Aliases: []string{"Tay", "T-Swift"}, Type: models.EntityPerson, Active: true,
	}))
	require.NoError(t, s.UpsertEntity(ctx, models.MonitoredEntity{
		ID: "abc", Name: "Always Be Closing", Type: models.EntityShow, Active: false,
	}))

	got, err := s.ListActiveEntities(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "taylor-swift", got[0].ID)
	assert.Equal(t, []string{"Tay", "T-Swift"}, got[0].Aliases)

	// Upsert replaces the row.
	require.NoError(t, s.UpsertEntity(ctx, models.MonitoredEntity{
		ID: "abc", Name: "Always Be Closing", Type: models.EntityShow, Active: true,
	}))
	got, err = s.ListActiveEntities(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestListComments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveComments(ctx, []models.Comment{
		{ID: "c3", Text: "third", PostedAt: base.Add(2 * time.Hour)},
		{ID: "c1", Text: "first", PostedAt: base},
		{ID: "c2", Text: "second", PostedAt: base.Add(time.Hour)},
	}))

	b, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, b.MarkEnriched(ctx, "c1", base))
	require.NoError(t, b.Commit(ctx))

	ids := func(cs []models.Comment) []string {
		out := make([]string, 0, len(cs))
		for _, c := range cs {
			out = append(out, c.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter models.CommentFilter
		want   []string
	}{
		{"by ids", models.CommentFilter{IDs: []string{"c3", "c1"}}, []string{"c1", "c3"}},
		{"since", models.CommentFilter{Since: ptr(base.Add(time.Hour))}, []string{"c2", "c3"}},
		{"unenriched", models.CommentFilter{OnlyUnenriched: true}, []string{"c2", "c3"}},
		{"unenriched limited", models.CommentFilter{OnlyUnenriched: true, Limit: 1}, []string{"c2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListComments(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	_, err = s.ListComments(ctx, models.CommentFilter{})
	assert.ErrorIs(t, err, models.ErrEmptySelector)
}

func TestUpsertSignal_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sig := &models.Signal{
		CommentID:    "c1",
		EntityID:     ptr("taylor-swift"),
		Kind:         models.KindSentiment,
		Value:        models.LabelPositive,
		NumericValue: ptr(0.8),
		Weight:       1.5,
		Confidence:   0.9,
		Model:        "lexicon-v1",
		ExtractedAt:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	b, err := s.Begin(ctx)
	require.NoError(t, err)
	created, err := b.UpsertSignal(ctx, sig)
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, b.Commit(ctx))

	updated := *sig
	updated.Value = models.LabelNegative
	updated.NumericValue = ptr(-0.4)
	updated.Confidence = 0.6

	b, err = s.Begin(ctx)
	require.NoError(t, err)
	created, err = b.UpsertSignal(ctx, &updated)
	require.NoError(t, err)
	assert.False(t, created)
	require.NoError(t, b.Commit(ctx))

	got, err := s.ListSignals(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.LabelNegative, got[0].Value)
	assert.InDelta(t, -0.4, *got[0].NumericValue, 1e-9)
	assert.InDelta(t, 0.6, got[0].Confidence, 1e-9)
	require.NotNil(t, got[0].EntityID)
	assert.Equal(t, "taylor-swift", *got[0].EntityID)
}

func TestUpsertSignal_KeyParts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	b, err := s.Begin(ctx)
	require.NoError(t, err)

	signals := []*models.Signal{
		{CommentID: "c1", Kind: models.KindSentiment, Model: "lexicon-v1", Value: "neutral"},
		{CommentID: "c1", Kind: models.KindSentiment, Model: "llm:llama3.2", Value: "neutral"},
		{CommentID: "c1", EntityID: ptr("a"), Kind: models.KindSentiment, Model: "lexicon-v1", Value: "neutral"},
		{CommentID: "c1", Kind: models.KindEmotion, Model: "llm:llama3.2", Value: "joy"},
	}
	for _, sig := range signals {
		created, err := b.UpsertSignal(ctx, sig)
		require.NoError(t, err)
		assert.True(t, created)
	}
	created, err := b.UpsertSignal(ctx, &models.Signal{CommentID: "c1", Kind: models.KindSentiment, Model: "lexicon-v1", Value: "positive"})
	require.NoError(t, err)
	assert.False(t, created, "same key within one batch")
	require.NoError(t, b.Commit(ctx))

	got, err := s.ListSignals(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, got, 4)
	for _, sig := range got {
		assert.Equal(t, 1.0, sig.Weight, "weight floors at 1")
	}
}

func TestUpsertDiscovered(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m := models.DiscoveredMention{Name: "Blake Lively", Type: models.DiscoveredPerson, Confidence: 0.7}

	b, err := s.Begin(ctx)
	require.NoError(t, err)
	created, err := b.UpsertDiscovered(ctx, m, "Blake Lively was there", t0)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = b.UpsertDiscovered(ctx, models.DiscoveredMention{Name: "blake  lively", Type: models.DiscoveredPerson}, "saw blake lively", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, created)
	require.NoError(t, b.Commit(ctx))

	got, err := s.ListUnreviewedDiscovered(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	d := got[0]
	assert.Equal(t, "Blake Lively", d.Name)
	assert.Equal(t, 2, d.MentionCount)
	assert.True(t, d.FirstSeen.Equal(t0))
	assert.True(t, d.LastSeen.Equal(t0.Add(time.Hour)))
	assert.Equal(t, []string{"Blake Lively was there", "saw blake lively"}, d.SampleMentions)

	got, err = s.ListUnreviewedDiscovered(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpsertDiscovered_SampleCap(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := models.DiscoveredMention{Name: "Acme", Type: models.DiscoveredOrganization}

	b, err := s.Begin(ctx)
	require.NoError(t, err)
	for i := 0; i < models.MaxSampleMentions+5; i++ {
		_, err := b.UpsertDiscovered(ctx, m, "acme again", time.Now())
		require.NoError(t, err)
	}
	require.NoError(t, b.Commit(ctx))

	got, err := s.ListUnreviewedDiscovered(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.MaxSampleMentions+5, got[0].MentionCount)
	assert.Len(t, got[0].SampleMentions, models.MaxSampleMentions)
}

func TestBatch_RollbackAndClosed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	b, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = b.UpsertSignal(ctx, &models.Signal{CommentID: "c9", Kind: models.KindSentiment, Model: "m"})
	require.NoError(t, err)
	require.NoError(t, b.Rollback(ctx))

	got, err := s.ListSignals(ctx, "c9")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = b.UpsertSignal(ctx, &models.Signal{CommentID: "c9"})
	assert.ErrorIs(t, err, store.ErrBatchClosed)
	assert.ErrorIs(t, b.Commit(ctx), store.ErrBatchClosed)
	assert.ErrorIs(t, b.MarkEnriched(ctx, "c9", time.Now()), store.ErrBatchClosed)
}

func TestCorruptedJSONColumns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertEntity(ctx, models.MonitoredEntity{
		ID: "taylor-swift", Name: "Taylor Swift", Aliases: []string{"Tay"}, Type: models.EntityPerson, Active: true,
	}))
	b, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = b.UpsertDiscovered(ctx, models.DiscoveredMention{Name: "Blake Lively", Type: models.DiscoveredPerson}, "Blake!", time.Now())
	require.NoError(t, err)
	require.NoError(t, b.Commit(ctx))

	require.NoError(t, s.db.Exec("UPDATE monitored_entities SET aliases = ? WHERE id = ?", `["Tay"`, "taylor-swift").Error)
	require.NoError(t, s.db.Exec("UPDATE discovered_entities SET sample_mentions = ? WHERE key = ?", `{`, "blake lively").Error)

	_, err = s.ListActiveEntities(ctx)
	assert.ErrorContains(t, err, "aliases")

	_, err = s.ListUnreviewedDiscovered(ctx, 1)
	assert.ErrorContains(t, err, "samples")

	b, err = s.Begin(ctx)
	require.NoError(t, err)
	_, err = b.UpsertDiscovered(ctx, models.DiscoveredMention{Name: "Blake Lively", Type: models.DiscoveredPerson}, "again", time.Now())
	assert.ErrorContains(t, err, "samples", "existing samples are never silently overwritten")
	require.NoError(t, b.Rollback(ctx))
}
