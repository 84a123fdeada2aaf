package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gamma-omg/rag-ledger/docstore"
	"github.com/gamma-omg/rag-ledger/embedder"
	"github.com/gamma-omg/rag-ledger/ledger"
)

type indexCloser interface {
	ledger.Index
	Close() error
}

// syncLedger serialises ingestion so that the manifest read-modify-write
// cycle never interleaves inside one process.
type syncLedger struct {
	*ledger.Ledger
	mu sync.Mutex
}

func (l *syncLedger) IngestText(ctx context.Context, text string, source string) ([]ledger.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.Ledger.IngestText(ctx, text, source)
}

// app holds everything a command needs once the config is loaded.
type app struct {
	cfg     *Config
	log     *slog.Logger
	ledger  *syncLedger
	closers []func() error
}

func newLogger(cfg *Config) (*slog.Logger, io.Closer, error) {
	if cfg.LogFile == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, nil)), io.NopCloser(nil), nil
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return slog.New(slog.NewJSONHandler(logFile, nil)), logFile, nil
}

func openIndex(cfg *Config, log *slog.Logger, reset bool) (indexCloser, func() error, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cfg.Index.Backend == BackendChroma {
		ef, closeEf, err := embedder.NewChromaFunction(cfg.embedderConfig())
		if err != nil {
			return nil, nil, err
		}

		store, err := docstore.NewChromaStore(ctx, docstore.ChromaStoreConfig{
			Log:           log,
			BaseURL:       cfg.Index.ChromaAddr,
			Collection:    cfg.Index.Collection,
			EmbeddingFunc: ef,
			RequestSize:   cfg.RequestSize,
			Reset:         reset,
		})
		if err != nil {
			_ = closeEf()
			return nil, nil, fmt.Errorf("failed to initialize Chroma doc store: %w", err)
		}

		return store, closeEf, nil
	}

	emb, closeEmb, err := embedder.New(cfg.embedderConfig())
	if err != nil {
		return nil, nil, err
	}

	var store indexCloser
	switch cfg.Index.Backend {
	case BackendQdrant:
		store, err = docstore.NewQdrantStore(ctx, docstore.QdrantStoreConfig{
			Log:        log,
			URL:        cfg.Index.QdrantAddr,
			Collection: cfg.Index.Collection,
			Embedder:   emb,
			Reset:      reset,
		})
	default:
		store, err = docstore.NewLocalStore(docstore.LocalStoreConfig{
			Log:        log,
			Dir:        cfg.Index.PersistDir,
			Collection: cfg.Index.Collection,
			Embedder:   emb,
			Reset:      reset,
		})
	}
	if err != nil {
		_ = closeEmb()
		return nil, nil, fmt.Errorf("failed to initialize %s doc store: %w", cfg.Index.Backend, err)
	}

	return store, closeEmb, nil
}

func newApp(cfgPath string, reset bool) (*app, error) {
	cfg, err := readConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	log, logFile, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	store, closeEmb, err := openIndex(cfg, log, reset)
	if err != nil {
		logFile.Close()
		return nil, err
	}

	log.Info("index opened",
		"backend", cfg.Index.Backend,
		"collection", cfg.Index.Collection,
		"embedding", cfg.Embedding.Provider,
		"model", cfg.Embedding.Model)

	return &app{
		cfg:     cfg,
		log:     log,
		ledger:  &syncLedger{Ledger: ledger.New(store, cfg.Manifest, log)},
		closers: []func() error{store.Close, closeEmb, logFile.Close},
	}, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		_ = c()
	}
}
