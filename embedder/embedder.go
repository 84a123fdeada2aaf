package embedder

import (
	"context"
	"errors"
	"fmt"

	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	defaultef "github.com/amikos-tech/chroma-go/pkg/embeddings/default_ef"
	gemini "github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
	openai "github.com/amikos-tech/chroma-go/pkg/embeddings/openai"
)

const (
	ProviderDefault = "default"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderHash    = "hash"
)

// DefaultModel is the model bundled with the default provider.
const DefaultModel = "all-MiniLM-L6-v2"

var (
	ErrUnknownProvider  = errors.New("unknown embedding provider")
	ErrUnsupportedModel = errors.New("unsupported embedding model")
)

// Embedder turns texts into vectors for stores that do not embed on their own.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Config struct {
	Provider   string
	Model      string
	ApiKey     string
	Dimensions int
}

// NewChromaFunction creates a chroma embedding function for the configured provider.
// The returned closer must be called once the function is no longer used.
func NewChromaFunction(cfg Config) (embeddings.EmbeddingFunction, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Provider {
	case ProviderDefault, "":
		if !isDefaultModel(cfg.Model) {
			return nil, nil, fmt.Errorf("%w: %s, the default provider only runs %s", ErrUnsupportedModel, cfg.Model, DefaultModel)
		}

		ef, closeEf, err := defaultef.NewDefaultEmbeddingFunction()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create default embedding function: %w", err)
		}

		return ef, closeEf, nil
	case ProviderOpenAI:
		ef, err := openai.NewOpenAIEmbeddingFunction(
			cfg.ApiKey,
			openai.WithModel(openai.EmbeddingModel(cfg.Model)))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OpenAI embedding function: %w", err)
		}

		return ef, noop, nil
	case ProviderGemini:
		ef, err := gemini.NewGeminiEmbeddingFunction(
			gemini.WithAPIKey(cfg.ApiKey),
			gemini.WithDefaultModel(embeddings.EmbeddingModel(cfg.Model)))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
		}

		return ef, noop, nil
	}

	return nil, nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
}

func isDefaultModel(model string) bool {
	return model == "" || model == DefaultModel || model == "sentence-transformers/"+DefaultModel
}

// New creates an Embedder for the configured provider.
func New(cfg Config) (Embedder, func() error, error) {
	if cfg.Provider == ProviderHash {
		return NewHash(cfg.Dimensions), func() error { return nil }, nil
	}

	ef, closeEf, err := NewChromaFunction(cfg)
	if err != nil {
		return nil, nil, err
	}

	return FromChroma(ef), closeEf, nil
}

type chromaEmbedder struct {
	ef embeddings.EmbeddingFunction
}

func FromChroma(ef embeddings.EmbeddingFunction) Embedder {
	return &chromaEmbedder{ef: ef}
}

func (e *chromaEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	embs, err := e.ef.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed documents: %w", err)
	}

	res := make([][]float32, 0, len(embs))
	for _, emb := range embs {
		res = append(res, emb.ContentAsFloat32())
	}

	return res, nil
}

func (e *chromaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	emb, err := e.ef.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return emb.ContentAsFloat32(), nil
}
