package main

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gamma-omg/rag-ledger/ledger"
)

type Ingester interface {
	IngestText(ctx context.Context, text string, source string) ([]ledger.Record, error)
}

type FileReader interface {
	CanRead(path string) bool
	ReadText(path string) (string, error)
}

// DocRegistry feeds the files under root to the ledger. It remembers the
// checksum of every file it ingested so unchanged files are not re-ingested
// within one process.
type DocRegistry struct {
	log              *slog.Logger
	root             string
	mergeEventsDelay time.Duration
	ingester         Ingester
	readers          []FileReader
	ingested         map[string]uint32
}

func (dr *DocRegistry) RegisterReader(readers ...FileReader) {
	dr.readers = append(dr.readers, readers...)
}

func (dr *DocRegistry) Sync(ctx context.Context) error {
	return filepath.WalkDir(dr.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		err = dr.ingestFile(ctx, path)
		if errors.Is(err, ledger.ErrEmptyInput) {
			dr.log.Warn("skipping empty document", "file", path)
			return nil
		}

		return err
	})
}

func (dr *DocRegistry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	err = dr.watchTree(watcher, dr.root)
	if err != nil {
		watcher.Close()
		return err
	}

	go dr.processEvents(ctx, watcher)
	return nil
}

func (dr *DocRegistry) watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		err = watcher.Add(path)
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}

		return nil
	})
}

// processEvents collects write events and ingests a file once it has been
// quiet for mergeEventsDelay. Files are ingested one at a time.
func (dr *DocRegistry) processEvents(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	pending := make(map[string]time.Time)
	tick := time.NewTicker(max(dr.mergeEventsDelay/2, 10*time.Millisecond))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			dr.log.Error("watcher error", "error", err)
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}

			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				delete(pending, ev.Name)
				delete(dr.ingested, ev.Name)
				dr.log.Info("document removed", "file", ev.Name)
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}

			info, err := os.Stat(ev.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				err = dr.watchTree(watcher, ev.Name)
				if err != nil {
					dr.log.Error("failed to watch directory", "dir", ev.Name, "error", err)
				}
				continue
			}

			pending[ev.Name] = time.Now()
		case now := <-tick.C:
			for path, at := range pending {
				if now.Sub(at) < dr.mergeEventsDelay {
					continue
				}

				delete(pending, path)
				err := dr.ingestFile(ctx, path)
				if err != nil {
					dr.log.Error("failed to ingest document", "file", path, "error", err)
				}
			}
		}
	}
}

func (dr *DocRegistry) ingestFile(ctx context.Context, path string) error {
	reader, ok := dr.findReader(path)
	if !ok {
		dr.log.Warn("unsupported file", "file", path)
		return nil
	}

	text, err := reader.ReadText(path)
	if err != nil {
		return fmt.Errorf("failed to read document %s: %w", path, err)
	}

	crc := crc32.ChecksumIEEE([]byte(text))
	if prev, ok := dr.ingested[path]; ok && prev == crc {
		return nil
	}

	_, err = dr.ingester.IngestText(ctx, text, dr.sourceName(path))
	if err != nil {
		return fmt.Errorf("failed to store document %s: %w", path, err)
	}

	if dr.ingested == nil {
		dr.ingested = make(map[string]uint32)
	}
	dr.ingested[path] = crc

	return nil
}

func (dr *DocRegistry) sourceName(path string) string {
	rel, err := filepath.Rel(dr.root, path)
	if err != nil {
		return filepath.Base(path)
	}

	return filepath.ToSlash(rel)
}

func (dr *DocRegistry) findReader(path string) (FileReader, bool) {
	for _, r := range dr.readers {
		if r.CanRead(path) {
			return r, true
		}
	}

	return nil, false
}
