package docstore

import (
	"context"
	"fmt"
	"log/slog"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

type ChromaStore struct {
	log         *slog.Logger
	requestSize int
	client      chroma.Client
	col         chroma.Collection
}

type ChromaStoreConfig struct {
	Log           *slog.Logger
	BaseURL       string
	Collection    string
	EmbeddingFunc embeddings.EmbeddingFunction
	RequestSize   int
	Reset         bool
}

func NewChromaStore(ctx context.Context, cfg ChromaStoreConfig) (*ChromaStore, error) {
	client, err := chroma.NewHTTPClient(chroma.WithBaseURL(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	if cfg.Reset {
		err = client.DeleteCollection(ctx, cfg.Collection)
		if err != nil {
			cfg.Log.Warn("failed to delete collection", "collection", cfg.Collection, "error", err)
		}
	}

	col, err := client.GetOrCreateCollection(ctx, cfg.Collection,
		chroma.WithEmbeddingFunctionCreate(cfg.EmbeddingFunc))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to open collection %s: %w", cfg.Collection, err)
	}

	return &ChromaStore{
		log:         cfg.Log,
		requestSize: cfg.RequestSize,
		client:      client,
		col:         col,
	}, nil
}

func (ds *ChromaStore) Upsert(ctx context.Context, entries []Entry) error {
	for _, batch := range splitBatches(dedupByID(entries), ds.requestSize) {
		ids := make([]chroma.DocumentID, 0, len(batch))
		texts := make([]string, 0, len(batch))
		metas := make([]chroma.DocumentMetadata, 0, len(batch))
		for _, e := range batch {
			ids = append(ids, chroma.DocumentID(e.ID))
			texts = append(texts, e.Content)
			metas = append(metas, chroma.NewDocumentMetadata(
				chroma.NewStringAttribute(FileKey, e.Metadata.File),
				chroma.NewStringAttribute(BlockTitleKey, e.Metadata.BlockTitle),
			))
		}

		err := ds.col.Upsert(ctx,
			chroma.WithIDs(ids...),
			chroma.WithTexts(texts...),
			chroma.WithMetadatas(metas...),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert %d blocks: %w", len(batch), err)
		}
	}

	ds.log.Info("upserted blocks", "collection", ds.col.Name(), "count", len(entries))
	return nil
}

func (ds *ChromaStore) Query(ctx context.Context, text string, k int) ([]SearchResult, error) {
	r, err := ds.col.Query(ctx,
		chroma.WithQueryTexts(text),
		chroma.WithNResults(k),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}

	return queryResults(r.GetIDGroups(), r.GetDocumentsGroups(), r.GetMetadatasGroups(), r.GetDistancesGroups()), nil
}

// queryResults assembles the first result group. Groups or fields the server
// left out are treated as empty.
func queryResults(
	idGroups []chroma.DocumentIDs,
	docGroups []chroma.Documents,
	metaGroups []chroma.DocumentMetadatas,
	distGroups []embeddings.Distances,
) []SearchResult {
	if len(idGroups) == 0 {
		return nil
	}

	ids := idGroups[0]
	var (
		docs  chroma.Documents
		metas chroma.DocumentMetadatas
		dists embeddings.Distances
	)
	if len(docGroups) > 0 {
		docs = docGroups[0]
	}
	if len(metaGroups) > 0 {
		metas = metaGroups[0]
	}
	if len(distGroups) > 0 {
		dists = distGroups[0]
	}

	res := make([]SearchResult, 0, len(ids))
	for i := range ids {
		e := Entry{ID: string(ids[i])}
		if i < len(docs) && docs[i] != nil {
			e.Content = docs[i].ContentString()
		}
		if i < len(metas) && metas[i] != nil {
			e.Metadata = chromaMetadata(metas[i])
		}

		var score float32
		if i < len(dists) {
			score = distanceToScore(float64(dists[i]))
		}

		res = append(res, SearchResult{Entry: e, Score: score})
	}

	return res
}

func (ds *ChromaStore) Get(ctx context.Context, id string) (Entry, bool, error) {
	r, err := ds.col.Get(ctx, chroma.WithIDsGet(chroma.DocumentID(id)))
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to get block %s: %w", id, err)
	}

	ids := r.GetIDs()
	if len(ids) == 0 {
		return Entry{}, false, nil
	}

	e := Entry{ID: string(ids[0])}
	if docs := r.GetDocuments(); len(docs) > 0 && docs[0] != nil {
		e.Content = docs[0].ContentString()
	}
	if metas := r.GetMetadatas(); len(metas) > 0 && metas[0] != nil {
		e.Metadata = chromaMetadata(metas[0])
	}

	return e, true, nil
}

func (ds *ChromaStore) Close() error {
	return ds.client.Close()
}

func chromaMetadata(meta chroma.DocumentMetadata) Metadata {
	file, _ := meta.GetString(FileKey)
	title, _ := meta.GetString(BlockTitleKey)
	return Metadata{File: file, BlockTitle: title}
}

// distanceToScore maps a distance to a relevance score where higher is better.
func distanceToScore(d float64) float32 {
	return float32(1 / (1 + d))
}

// dedupByID drops repeated ids from a batch. The last entry for an id wins and
// takes the position of the first one.
func dedupByID(entries []Entry) []Entry {
	pos := make(map[string]int, len(entries))
	res := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if i, ok := pos[e.ID]; ok {
			res[i] = e
			continue
		}

		pos[e.ID] = len(res)
		res = append(res, e)
	}

	return res
}

// splitBatches groups entries so that the content of every group stays within
// size bytes. A single oversized entry forms its own group. size <= 0 disables
// splitting.
func splitBatches(entries []Entry, size int) [][]Entry {
	if len(entries) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]Entry{entries}
	}

	var (
		res   [][]Entry
		cur   []Entry
		bytes int
	)
	for _, e := range entries {
		if len(cur) > 0 && bytes+len(e.Content) > size {
			res = append(res, cur)
			cur, bytes = nil, 0
		}
		cur = append(cur, e)
		bytes += len(e.Content)
	}

	return append(res, cur)
}
