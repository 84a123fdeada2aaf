package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/gamma-omg/rag-ledger/embedder"
)

// LocalStore keeps vectors in memory, searches them by brute-force cosine
// similarity and persists the collection as a JSON file inside dir.
type LocalStore struct {
	mu         sync.RWMutex
	log        *slog.Logger
	collection string
	path       string
	emb        embedder.Embedder
	records    []localRecord
	index      map[string]int
}

type localRecord struct {
	Entry
	Vector []float32 `json:"vector"`
}

type localFile struct {
	Collection string        `json:"collection"`
	Records    []localRecord `json:"records"`
}

type LocalStoreConfig struct {
	Log        *slog.Logger
	Dir        string
	Collection string
	Embedder   embedder.Embedder
	Reset      bool
}

func NewLocalStore(cfg LocalStoreConfig) (*LocalStore, error) {
	ls := &LocalStore{
		log:        cfg.Log,
		collection: cfg.Collection,
		path:       filepath.Join(cfg.Dir, cfg.Collection+".json"),
		emb:        cfg.Embedder,
		index:      make(map[string]int),
	}

	if cfg.Reset {
		err := os.Remove(ls.path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to reset local index: %w", err)
		}
		return ls, nil
	}

	buf, err := os.ReadFile(ls.path)
	if errors.Is(err, os.ErrNotExist) {
		return ls, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read local index: %w", err)
	}

	var f localFile
	err = json.Unmarshal(buf, &f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse local index %s: %w", ls.path, err)
	}

	for _, r := range f.Records {
		ls.index[r.ID] = len(ls.records)
		ls.records = append(ls.records, r)
	}

	return ls, nil
}

func (ls *LocalStore) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		texts = append(texts, e.Content)
	}

	vecs, err := ls.emb.EmbedDocuments(ctx, texts)
	if err != nil {
		return err
	}
	if len(vecs) != len(entries) {
		return fmt.Errorf("embedder returned %d vectors for %d blocks", len(vecs), len(entries))
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	for i, e := range entries {
		r := localRecord{Entry: e, Vector: vecs[i]}
		if pos, ok := ls.index[e.ID]; ok {
			ls.records[pos] = r
			continue
		}

		ls.index[e.ID] = len(ls.records)
		ls.records = append(ls.records, r)
	}

	err = ls.persist()
	if err != nil {
		return err
	}

	ls.log.Info("upserted blocks", "collection", ls.collection, "count", len(entries))
	return nil
}

func (ls *LocalStore) Query(ctx context.Context, text string, k int) ([]SearchResult, error) {
	q, err := ls.emb.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	ls.mu.RLock()
	defer ls.mu.RUnlock()

	res := make([]SearchResult, 0, len(ls.records))
	for _, r := range ls.records {
		res = append(res, SearchResult{Entry: r.Entry, Score: cosine(q, r.Vector)})
	}

	slices.SortStableFunc(res, func(a, b SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if k < len(res) {
		res = res[:k]
	}

	return res, nil
}

func (ls *LocalStore) Get(ctx context.Context, id string) (Entry, bool, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	pos, ok := ls.index[id]
	if !ok {
		return Entry{}, false, nil
	}

	return ls.records[pos].Entry, true, nil
}

func (ls *LocalStore) Close() error {
	return nil
}

func (ls *LocalStore) persist() error {
	err := os.MkdirAll(filepath.Dir(ls.path), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create index dir: %w", err)
	}

	buf, err := json.Marshal(localFile{
		Collection: ls.collection,
		Records:    ls.records,
	})
	if err != nil {
		return fmt.Errorf("failed to encode local index: %w", err)
	}

	tmp := ls.path + ".tmp"
	err = os.WriteFile(tmp, buf, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write local index: %w", err)
	}

	return os.Rename(tmp, ls.path)
}

func cosine(a, b []float32) float32 {
	n := min(len(a), len(b))

	var dot, na, nb float64
	for i := range n {
		dot += float64(a[i] * b[i])
		na += float64(a[i] * a[i])
		nb += float64(b[i] * b[i])
	}

	if na == 0 || nb == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
