package ledger

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gamma-omg/rag-ledger/blocks"
	"github.com/gamma-omg/rag-ledger/docstore"
)

var (
	ErrEmptyInput = errors.New("empty input")
	ErrInvalidK   = errors.New("k must be greater than 0")
)

type Index interface {
	Upsert(ctx context.Context, entries []docstore.Entry) error
	Query(ctx context.Context, text string, k int) ([]docstore.SearchResult, error)
	Get(ctx context.Context, id string) (docstore.Entry, bool, error)
}

type Record = docstore.Entry

// Ledger upserts blocks into the index under content-derived ids and keeps
// the manifest of everything it has written.
type Ledger struct {
	log      *slog.Logger
	index    Index
	manifest string
}

func New(index Index, manifestPath string, log *slog.Logger) *Ledger {
	return &Ledger{
		log:      log,
		index:    index,
		manifest: manifestPath,
	}
}

// StableID is the hex MD5 digest of content.
func StableID(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

func (l *Ledger) IngestText(ctx context.Context, text string, source string) ([]Record, error) {
	bb := blocks.Split(text)
	if len(bb) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptyInput)
	}

	return l.Ingest(ctx, bb, source)
}

// Ingest upserts blocks in a single index call and then appends them to the
// manifest in a single read-modify-write cycle.
func (l *Ledger) Ingest(ctx context.Context, bb []blocks.Block, source string) ([]Record, error) {
	if len(bb) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptyInput)
	}

	records := make([]Record, 0, len(bb))
	for _, b := range bb {
		title := b.Title
		if title == "" {
			title = blocks.TitleOf(b.Content)
		}

		records = append(records, Record{
			ID:      StableID(b.Content),
			Content: b.Content,
			Metadata: docstore.Metadata{
				File:       source,
				BlockTitle: title,
			},
		})
	}

	err := l.index.Upsert(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert %s: %w", source, err)
	}

	err = l.appendManifest(records)
	if err != nil {
		return nil, err
	}

	l.log.Info("ingested document", "file", source, "blocks", len(records))
	return records, nil
}

func (l *Ledger) appendManifest(records []Record) error {
	m, err := LoadManifest(l.manifest)
	if errors.Is(err, ErrManifestCorrupt) {
		l.log.Warn("manifest reset, previous entries are discarded", "path", l.manifest, "error", err)
	} else if err != nil {
		return err
	}

	for _, r := range records {
		m.Append(ManifestItem{
			ID:         r.ID,
			File:       r.Metadata.File,
			BlockTitle: r.Metadata.BlockTitle,
		})
	}

	return m.Save(l.manifest)
}

func (l *Ledger) Search(ctx context.Context, query string, k int) ([]docstore.SearchResult, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if query == "" {
		return nil, fmt.Errorf("query: %w", ErrEmptyInput)
	}

	res, err := l.index.Query(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	return res, nil
}

// Get looks a block up by id. A missing block is reported through the
// boolean result, not as an error.
func (l *Ledger) Get(ctx context.Context, id string) (Record, bool, error) {
	if id == "" {
		return Record{}, false, fmt.Errorf("id: %w", ErrEmptyInput)
	}

	r, ok, err := l.index.Get(ctx, id)
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to get block: %w", err)
	}

	return r, ok, nil
}
