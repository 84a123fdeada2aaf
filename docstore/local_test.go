package docstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/gamma-omg/rag-ledger/embedder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingEmbedder struct{}

func (failingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("quota exceeded")
}

func (failingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("quota exceeded")
}

func newTestLocalStore(t *testing.T, dir string) *LocalStore {
	ls, err := NewLocalStore(LocalStoreConfig{
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Dir:        dir,
		Collection: "facts",
		Embedder:   embedder.NewHash(64),
	})
	require.NoError(t, err)

	return ls
}

var facts = []Entry{
	{ID: "venus", Content: "A day on Venus is longer than its year.", Metadata: Metadata{File: "space.txt", BlockTitle: "Venus"}},
	{ID: "banana", Content: "Bananas are berries, but strawberries aren't.", Metadata: Metadata{File: "fruit.txt", BlockTitle: "Bananas"}},
	{ID: "octopus", Content: "An octopus has three hearts.", Metadata: Metadata{File: "sea.txt", BlockTitle: "Octopus"}},
}

func Test_LocalStore_QueryRanksByRelevance(t *testing.T) {
	ls := newTestLocalStore(t, t.TempDir())
	require.NoError(t, ls.Upsert(context.Background(), facts))

	res, err := ls.Query(context.Background(), "are bananas berries", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, "banana", res[0].ID)
	assert.Equal(t, "fruit.txt", res[0].Metadata.File)
	assert.GreaterOrEqual(t, res[0].Score, res[1].Score)
}

func Test_LocalStore_QueryMoreThanStored(t *testing.T) {
	ls := newTestLocalStore(t, t.TempDir())
	require.NoError(t, ls.Upsert(context.Background(), facts))

	res, err := ls.Query(context.Background(), "hearts", 10)
	require.NoError(t, err)
	assert.Len(t, res, len(facts))
}

func Test_LocalStore_UpsertOverwritesByID(t *testing.T) {
	ls := newTestLocalStore(t, t.TempDir())
	require.NoError(t, ls.Upsert(context.Background(), facts))

	updated := Entry{ID: "venus", Content: "Venus spins backwards.", Metadata: Metadata{File: "space2.txt", BlockTitle: "Venus spins"}}
	require.NoError(t, ls.Upsert(context.Background(), []Entry{updated}))

	got, ok, err := ls.Get(context.Background(), "venus")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, updated, got)

	res, err := ls.Query(context.Background(), "anything", 10)
	require.NoError(t, err)
	assert.Len(t, res, len(facts))
}

func Test_LocalStore_GetMissing(t *testing.T) {
	ls := newTestLocalStore(t, t.TempDir())

	_, ok, err := ls.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_LocalStore_Persists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, newTestLocalStore(t, dir).Upsert(context.Background(), facts))
	assert.FileExists(t, filepath.Join(dir, "facts.json"))

	reopened := newTestLocalStore(t, dir)
	got, ok, err := reopened.Get(context.Background(), "octopus")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, facts[2], got)
}

func Test_LocalStore_Reset(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, newTestLocalStore(t, dir).Upsert(context.Background(), facts))

	ls, err := NewLocalStore(LocalStoreConfig{
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Dir:        dir,
		Collection: "facts",
		Embedder:   embedder.NewHash(64),
		Reset:      true,
	})
	require.NoError(t, err)

	_, ok, err := ls.Get(context.Background(), "octopus")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoFileExists(t, filepath.Join(dir, "facts.json"))
}

func Test_LocalStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "facts.json"), []byte("{not json"), 0o644))

	_, err := NewLocalStore(LocalStoreConfig{
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Dir:        dir,
		Collection: "facts",
		Embedder:   embedder.NewHash(64),
	})
	assert.Error(t, err)
}

func Test_LocalStore_EmbedderFailure(t *testing.T) {
	ls, err := NewLocalStore(LocalStoreConfig{
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Dir:        t.TempDir(),
		Collection: "facts",
		Embedder:   failingEmbedder{},
	})
	require.NoError(t, err)

	assert.Error(t, ls.Upsert(context.Background(), facts))

	_, err = ls.Query(context.Background(), "x", 1)
	assert.Error(t, err)
}
