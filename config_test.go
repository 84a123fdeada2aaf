package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_readConfig_Defaults(t *testing.T) {
	cfg, err := readConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, BackendLocal, cfg.Index.Backend)
	assert.Equal(t, "lesson_rag_docs", cfg.Index.Collection)
	assert.Equal(t, "data/lesson_rag/ids.json", cfg.Manifest)
	assert.Equal(t, 5, cfg.Results)
}

func Test_readConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
manifest: out/ids.json
results: 3
index:
  backend: qdrant
  collection: docs
embedding:
  provider: openai
  model: text-embedding-3-small
`), 0o644))

	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := readConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "out/ids.json", cfg.Manifest)
	assert.Equal(t, 3, cfg.Results)
	assert.Equal(t, BackendQdrant, cfg.Index.Backend)
	assert.Equal(t, "docs", cfg.Index.Collection)
	assert.Equal(t, "http://localhost:6333", cfg.Index.QdrantAddr)
	assert.Equal(t, "sk-test", cfg.Embedding.ApiKey)
	assert.Equal(t, "text-embedding-3-small", cfg.embedderConfig().Model)
}

func Test_readConfig_Invalid(t *testing.T) {
	var cases = map[string]string{
		"syntax":           "index: [",
		"backend":          "index:\n  backend: redis\n",
		"hash with chroma": "index:\n  backend: chroma\nembedding:\n  provider: hash\n",
		"results":          "results: -1\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			_, err := readConfig(path)
			assert.Error(t, err)
		})
	}
}
