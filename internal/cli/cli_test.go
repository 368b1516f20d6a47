package cli

import (
	"context"
	"testing"
	"time"

	"github.com/raphaelgruber/signalroom/internal/config"
	"github.com/raphaelgruber/signalroom/internal/models"
	"github.com/raphaelgruber/signalroom/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	t.Run("ids", func(t *testing.T) {
		f, err := parseFilter([]string{"c1", "c2"}, "", false, 0, now)
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2"}, f.IDs)
		assert.Nil(t, f.Since)
	})

	t.Run("since timestamp", func(t *testing.T) {
		f, err := parseFilter(nil, "2026-03-01T00:00:00Z", false, 10, now)
		require.NoError(t, err)
		require.NotNil(t, f.Since)
		assert.True(t, f.Since.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, 10, f.Limit)
	})

	t.Run("since duration", func(t *testing.T) {
		f, err := parseFilter(nil, "24h", false, 0, now)
		require.NoError(t, err)
		require.NotNil(t, f.Since)
		assert.True(t, f.Since.Equal(now.Add(-24*time.Hour)))
	})

	t.Run("bad since", func(t *testing.T) {
		_, err := parseFilter(nil, "yesterday", false, 0, now)
		assert.ErrorContains(t, err, "invalid --since")
	})

	t.Run("empty selector", func(t *testing.T) {
		_, err := parseFilter(nil, "", false, 0, now)
		assert.ErrorIs(t, err, models.ErrEmptySelector)
	})
}

func TestOpenStoreUnknown(t *testing.T) {
	_, err := openStore(context.Background(), config.Config{Store: "cassandra"}, nil)
	assert.ErrorIs(t, err, store.ErrUnknownStore)
}

func TestParseSeed(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	doc := []byte(`
entities:
  - name: Taylor Swift
    aliases: [Tay]
  - id: rr
    name: Ryan Reynolds
    type: person
    active: false
comments:
  - id: c1
    text: Tay was great
    likes: 50
    posted_at: 2026-03-01T20:00:00Z
  - id: c2
    text: no date
`)

	entities, comments, err := parseSeed(doc, now)
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, models.EntityPerson, entities[0].Type)
	assert.True(t, entities[0].Active)
	assert.Equal(t, []string{"Tay"}, entities[0].Aliases)
	assert.False(t, entities[1].Active)

	require.Len(t, comments, 2)
	assert.Equal(t, 50, comments[0].Likes)
	assert.True(t, comments[0].PostedAt.Equal(time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)))
	assert.True(t, comments[1].PostedAt.Equal(now))
}

func TestParseSeedErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"missing name", "entities:\n  - type: person\n", "name is required"},
		{"bad type", "entities:\n  - name: X\n    type: planet\n", "invalid type"},
		{"missing comment id", "comments:\n  - text: hi\n", "id is required"},
		{"not yaml", "entities: [", "parse seed file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseSeed([]byte(tt.doc), time.Now())
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestTruncateLine(t *testing.T) {
	assert.Equal(t, "a b c", truncateLine("a\n b   c", 80))
	assert.Equal(t, "abcd…", truncateLine("abcdefgh", 5))
}
