package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gamma-omg/rag-ledger/docstore"
	"github.com/gamma-omg/rag-ledger/embedder"
	"github.com/gamma-omg/rag-ledger/ledger"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *syncLedger {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	store, err := docstore.NewLocalStore(docstore.LocalStoreConfig{
		Log:        log,
		Dir:        filepath.Join(dir, "index"),
		Collection: "test",
		Embedder:   embedder.NewHash(128),
	})
	require.NoError(t, err)

	return &syncLedger{Ledger: ledger.New(store, filepath.Join(dir, "ids.json"), log)}
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func Test_RagTools_AddSearchGet(t *testing.T) {
	l := newTestLedger(t)
	tools := &ragTools{ledger: l, results: 5}
	ctx := context.Background()

	res, err := tools.add(ctx, callTool("add_text", map[string]any{
		"text": "Venus\nA day on Venus is longer than its year.\n\n\nBananas\nBananas are berries.",
		"file": "facts.txt",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "added 2 blocks")

	res, err = tools.search(ctx, callTool("search_blocks", map[string]any{
		"query": "are bananas berries",
		"k":     float64(1),
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	lines := strings.Split(strings.TrimSpace(resultText(t, res)), "\n")
	require.Len(t, lines, 1)

	var hit searchHit
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &hit))
	assert.Equal(t, "facts.txt", hit.File)
	assert.Equal(t, "Bananas", hit.BlockTitle)
	assert.Equal(t, ledger.StableID("Bananas\nBananas are berries."), hit.ID)

	res, err = tools.get(ctx, callTool("get_block", map[string]any{"id": hit.ID}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var rec ledger.Record
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &rec))
	assert.Equal(t, "Bananas\nBananas are berries.", rec.Content)
}

func Test_RagTools_GetNotFound(t *testing.T) {
	tools := &ragTools{ledger: newTestLedger(t), results: 5}

	res, err := tools.get(context.Background(), callTool("get_block", map[string]any{"id": "missing"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not found")
}

func Test_RagTools_Errors(t *testing.T) {
	tools := &ragTools{ledger: newTestLedger(t), results: 5}
	ctx := context.Background()

	res, err := tools.search(ctx, callTool("search_blocks", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = tools.search(ctx, callTool("search_blocks", map[string]any{"query": "x", "k": float64(-1)}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = tools.add(ctx, callTool("add_text", map[string]any{"text": "  \n\n\n  "}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = tools.get(ctx, callTool("get_block", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func Test_NewRagServer(t *testing.T) {
	assert.NotNil(t, NewRagServer(newTestLedger(t), 5))
}
