package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSearch(t *testing.T) {
	store, err := NewStore(nil, nil)
	require.NoError(t, err)

	err = store.AddPassages(context.Background(), DefaultCorpus)
	require.NoError(t, err)

	matches, err := store.Search(context.Background(), "thoughts of suicide and self-harm crisis", 3)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.LessOrEqual(t, len(matches), 3)

	// The lifeline passage shares the most vocabulary with the query.
	assert.Contains(t, matches[0].Content, "988")
}

func TestStoreSearchEmpty(t *testing.T) {
	store, err := NewStore(nil, nil)
	require.NoError(t, err)

	matches, err := store.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestStoreSearchClampsTopK(t *testing.T) {
	store, err := NewStore(nil, nil)
	require.NoError(t, err)

	require.NoError(t, store.AddPassages(context.Background(), []string{
		"breathing exercises calm a panic attack",
		"hopelessness is a sign of severe depression",
	}))

	matches, err := store.Search(context.Background(), "panic attack breathing", 10)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestLocalEmbeddingDeterministic(t *testing.T) {
	embed := LocalEmbeddingFunc()

	a, err := embed(context.Background(), "I feel hopeless and alone")
	require.NoError(t, err)
	b, err := embed(context.Background(), "I feel hopeless and alone")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
