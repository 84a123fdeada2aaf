package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/gamma-omg/rag-ledger/embedder"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore keeps blocks in a Qdrant collection. Block ids are hex digests,
// so they are stored as UUID point ids and kept verbatim in the payload.
type QdrantStore struct {
	log        *slog.Logger
	client     *qdrant.Client
	collection string
	emb        embedder.Embedder
	ready      bool
}

type QdrantStoreConfig struct {
	Log        *slog.Logger
	URL        string
	Collection string
	Embedder   embedder.Embedder
	Reset      bool
}

func NewQdrantStore(ctx context.Context, cfg QdrantStoreConfig) (*QdrantStore, error) {
	host, port, err := qdrantEndpoint(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	if cfg.Reset {
		err = client.DeleteCollection(ctx, cfg.Collection)
		if err != nil {
			cfg.Log.Warn("failed to delete collection", "collection", cfg.Collection, "error", err)
		}
	}

	return &QdrantStore{
		log:        cfg.Log,
		client:     client,
		collection: cfg.Collection,
		emb:        cfg.Embedder,
	}, nil
}

// qdrantEndpoint derives the gRPC host and port from the HTTP url of the server.
func qdrantEndpoint(raw string) (string, int, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant url: %w", err)
	}

	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334
	if u.Port() != "" {
		httpPort, err := strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, fmt.Errorf("invalid qdrant port %q: %w", u.Port(), err)
		}
		port = httpPort + 1
	}

	return host, port, nil
}

func pointID(id string) (string, error) {
	if !isHexDigest(id) {
		return "", fmt.Errorf("block id %q is not a 128-bit lowercase hex digest", id)
	}

	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("block id %q: %w", id, err)
	}

	return u.String(), nil
}

// isHexDigest reports whether id is exactly 32 lowercase hex characters, the
// only form the ledger writes.
func isHexDigest(id string) bool {
	if len(id) != 32 {
		return false
	}

	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}

	return true
}

func (s *QdrantStore) ensureCollection(ctx context.Context, size int) error {
	if s.ready {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(size),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		s.log.Info("collection created", "collection", s.collection, "vector_size", size)
	}

	s.ready = true
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		texts = append(texts, e.Content)
	}

	vecs, err := s.emb.EmbedDocuments(ctx, texts)
	if err != nil {
		return err
	}
	if len(vecs) != len(entries) {
		return fmt.Errorf("embedder returned %d vectors for %d blocks", len(vecs), len(entries))
	}

	err = s.ensureCollection(ctx, len(vecs[0]))
	if err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(entries))
	for i, e := range entries {
		pid, err := pointID(e.ID)
		if err != nil {
			return err
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pid),
			Vectors: qdrant.NewVectors(vecs[i]...),
			Payload: qdrant.NewValueMap(payloadOf(e)),
		})
	}

	wait := true
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	s.log.Info("upserted blocks", "collection", s.collection, "count", len(entries))
	return nil
}

func (s *QdrantStore) Query(ctx context.Context, text string, k int) ([]SearchResult, error) {
	vec, err := s.emb.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	limit := uint64(k)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	res := make([]SearchResult, 0, len(points))
	for _, p := range points {
		res = append(res, SearchResult{
			Entry: entryOf(p.GetPayload()),
			Score: p.GetScore(),
		})
	}

	return res, nil
}

func (s *QdrantStore) Get(ctx context.Context, id string) (Entry, bool, error) {
	pid, err := pointID(id)
	if err != nil {
		// not a digest we could have written
		return Entry{}, false, nil
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(pid)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to get point %s: %w", id, err)
	}
	if len(points) == 0 {
		return Entry{}, false, nil
	}

	return entryOf(points[0].GetPayload()), true, nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func payloadOf(e Entry) map[string]any {
	return map[string]any{
		BlockIDKey:    e.ID,
		ContentKey:    e.Content,
		FileKey:       e.Metadata.File,
		BlockTitleKey: e.Metadata.BlockTitle,
	}
}

func entryOf(payload map[string]*qdrant.Value) Entry {
	str := func(key string) string {
		v, ok := payload[key]
		if !ok || v == nil {
			return ""
		}
		return v.GetStringValue()
	}

	return Entry{
		ID:      str(BlockIDKey),
		Content: str(ContentKey),
		Metadata: Metadata{
			File:       str(FileKey),
			BlockTitle: str(BlockTitleKey),
		},
	}
}
