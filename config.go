package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/gamma-omg/rag-ledger/embedder"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendChroma = "chroma"
	BackendQdrant = "qdrant"
	BackendLocal  = "local"
)

type Config struct {
	LogFile       string `yaml:"log"`
	DocRoot       string `yaml:"doc_root"`
	MergeEventsMs int    `yaml:"write_debounce_ms"`
	RequestSize   int    `yaml:"request_size"`
	Results       int    `yaml:"results"`
	ServerAddr    string `yaml:"server_addr"`
	Manifest      string `yaml:"manifest"`
	Index         struct {
		Backend    string `yaml:"backend"`
		Collection string `yaml:"collection"`
		PersistDir string `yaml:"persist_dir"`
		ChromaAddr string `yaml:"chroma_addr"`
		QdrantAddr string `yaml:"qdrant_addr"`
	} `yaml:"index"`
	Embedding struct {
		Provider   string `yaml:"provider"`
		Model      string `yaml:"model"`
		ApiKey     string `yaml:"api_key"`
		Dimensions int    `yaml:"dimensions"`
	} `yaml:"embedding"`
}

func defaultConfig() *Config {
	cfg := &Config{
		DocRoot:       "docs",
		MergeEventsMs: 500,
		Results:       5,
		ServerAddr:    "localhost:8080",
		Manifest:      "data/lesson_rag/ids.json",
	}
	cfg.Index.Backend = BackendLocal
	cfg.Index.Collection = "lesson_rag_docs"
	cfg.Index.PersistDir = "chroma_db"
	cfg.Index.ChromaAddr = "http://localhost:8000"
	cfg.Index.QdrantAddr = "http://localhost:6333"
	cfg.Embedding.Provider = embedder.ProviderDefault
	cfg.Embedding.Model = "sentence-transformers/all-MiniLM-L6-v2"
	cfg.Embedding.Dimensions = 384

	return cfg
}

// readConfig loads cfgPath over the defaults. A missing file leaves the
// defaults untouched. API keys missing from the file are taken from the
// environment, which may be populated from a .env file.
func readConfig(cfgPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	cfgFile, err := os.Open(cfgPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("unable to open config file: %w", err)
	default:
		defer cfgFile.Close()

		dec := yaml.NewDecoder(cfgFile)
		err = dec.Decode(cfg)
		if err != nil {
			return nil, fmt.Errorf("unable to parse config file: %w", err)
		}
	}

	if cfg.Embedding.ApiKey == "" {
		switch cfg.Embedding.Provider {
		case embedder.ProviderOpenAI:
			cfg.Embedding.ApiKey = os.Getenv("OPENAI_API_KEY")
		case embedder.ProviderGemini:
			cfg.Embedding.ApiKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Index.Backend {
	case BackendChroma, BackendQdrant, BackendLocal:
	default:
		return fmt.Errorf("unknown index backend: %q", c.Index.Backend)
	}

	if c.Index.Backend == BackendChroma && c.Embedding.Provider == embedder.ProviderHash {
		return errors.New("hash embeddings are not supported by the chroma backend")
	}
	if c.Index.Collection == "" {
		return errors.New("index collection must be set")
	}
	if c.Manifest == "" {
		return errors.New("manifest path must be set")
	}
	if c.Results <= 0 {
		return fmt.Errorf("results must be greater than 0, got %d", c.Results)
	}

	return nil
}

func (c *Config) embedderConfig() embedder.Config {
	return embedder.Config{
		Provider:   c.Embedding.Provider,
		Model:      c.Embedding.Model,
		ApiKey:     c.Embedding.ApiKey,
		Dimensions: c.Embedding.Dimensions,
	}
}
