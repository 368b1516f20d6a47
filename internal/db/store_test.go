//go:build integration

package db

import (
	"context"
	"testing"
	"time"

	"github.com/raphaelgruber/signalroom/internal/models"
	"github.com/raphaelgruber/signalroom/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestStoreEntities(t *testing.T) {
	resetDB(t)
	ctx := context.Background()

	require.NoError(t, testStore.UpsertEntity(ctx, models.MonitoredEntity{
		Name: "Taylor Swift", Aliases: []string{"Tay"}, Type: models.EntityPerson, Active: true,
	}))
	require.NoError(t, testStore.UpsertEntity(ctx, models.MonitoredEntity{
		ID: "retired", Name: "Retired Show", Type: models.EntityShow, Active: false,
	}))

	got, err := testStore.ListActiveEntities(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "taylor-swift", got[0].ID)
	assert.Equal(t, []string{"Tay"}, got[0].Aliases)
}

func TestStoreListComments(t *testing.T) {
	resetDB(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, testStore.SaveComments(ctx, []models.Comment{
		{ID: "c1", Text: "first", PostedAt: base, PostCaption: "night one"},
		{ID: "c2", Text: "second", PostedAt: base.Add(time.Hour)},
	}))

	b, err := testStore.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, b.MarkEnriched(ctx, "c1", base))
	require.NoError(t, b.Commit(ctx))

	pending, err := testStore.ListComments(ctx, models.CommentFilter{OnlyUnenriched: true})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c2", pending[0].ID)

	byID, err := testStore.ListComments(ctx, models.CommentFilter{IDs: []string{"c1"}})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "night one", byID[0].PostCaption)
	assert.NotNil(t, byID[0].EnrichedAt)

	since, err := testStore.ListComments(ctx, models.CommentFilter{Since: ptr(base.Add(30 * time.Minute))})
	require.NoError(t, err)
	assert.Len(t, since, 1)
}

func TestStoreUpsertSignalIdempotent(t *testing.T) {
	resetDB(t)
	ctx := context.Background()

	sig := &models.Signal{
		CommentID:    "c1",
		EntityID:     ptr("taylor-swift"),
		Kind:         models.KindSentiment,
		Value:        models.LabelPositive,
		NumericValue: ptr(0.8),
		Weight:       1.5,
		Confidence:   0.9,
		Model:        "lexicon-v1",
	}

	for i, wantCreated := range []bool{true, false} {
		b, err := testStore.Begin(ctx)
		require.NoError(t, err)
		created, err := b.UpsertSignal(ctx, sig)
		require.NoError(t, err)
		assert.Equal(t, wantCreated, created, "run %d", i)
		require.NoError(t, b.Commit(ctx))
	}

	comment := &models.Signal{CommentID: "c1", Kind: models.KindEmotion, Value: "joy", Model: "llm:llama3.2", Confidence: 0.7}
	b, err := testStore.Begin(ctx)
	require.NoError(t, err)
	_, err = b.UpsertSignal(ctx, comment)
	require.NoError(t, err)
	require.NoError(t, b.Commit(ctx))

	got, err := testStore.ListSignals(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].EntityID, "emotion sorts first and is comment-level")
	require.NotNil(t, got[1].NumericValue)
	assert.InDelta(t, 0.8, *got[1].NumericValue, 1e-9)
}

func TestStoreUpsertDiscovered(t *testing.T) {
	resetDB(t)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m := models.DiscoveredMention{Name: "Blake Lively", Type: models.DiscoveredPerson}

	b, err := testStore.Begin(ctx)
	require.NoError(t, err)
	created, err := b.UpsertDiscovered(ctx, m, "Blake Lively was there", t0)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = b.UpsertDiscovered(ctx, m, "saw blake", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, created, "pending in the same batch")
	require.NoError(t, b.Commit(ctx))

	got, err := testStore.ListUnreviewedDiscovered(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].MentionCount)
	assert.Equal(t, []string{"Blake Lively was there", "saw blake"}, got[0].SampleMentions)
	assert.True(t, got[0].LastSeen.Equal(t0.Add(time.Hour)))
}

func TestStoreRollback(t *testing.T) {
	resetDB(t)
	ctx := context.Background()

	b, err := testStore.Begin(ctx)
	require.NoError(t, err)
	_, err = b.UpsertSignal(ctx, &models.Signal{CommentID: "c9", Kind: models.KindSentiment, Model: "m"})
	require.NoError(t, err)
	require.NoError(t, b.Rollback(ctx))
	assert.ErrorIs(t, b.Commit(ctx), store.ErrBatchClosed)

	got, err := testStore.ListSignals(ctx, "c9")
	require.NoError(t, err)
	assert.Empty(t, got)
}
