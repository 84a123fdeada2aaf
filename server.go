package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gamma-omg/rag-ledger/docstore"
	"github.com/gamma-omg/rag-ledger/ledger"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type blockLedger interface {
	Ingester
	Search(ctx context.Context, query string, k int) ([]docstore.SearchResult, error)
	Get(ctx context.Context, id string) (ledger.Record, bool, error)
}

type searchHit struct {
	ID         string  `json:"id"`
	Score      float32 `json:"score"`
	File       string  `json:"file"`
	BlockTitle string  `json:"block_title"`
	Text       string  `json:"text"`
}

type ragTools struct {
	ledger  blockLedger
	results int
}

func NewRagServer(l blockLedger, results int) *server.MCPServer {
	tools := &ragTools{ledger: l, results: results}

	srv := server.NewMCPServer("rag-ledger", "0.1.0", server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("search_blocks",
		mcp.WithDescription("Searches the indexed document blocks and returns the most relevant ones for RAG"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithNumber("k",
			mcp.Description("Number of blocks to return"),
		),
	), tools.search)

	srv.AddTool(mcp.NewTool("get_block",
		mcp.WithDescription("Returns a document block by its id"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Block id"),
		),
	), tools.get)

	srv.AddTool(mcp.NewTool("add_text",
		mcp.WithDescription("Splits text into blocks on double blank lines and adds them to the index"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Document text"),
		),
		mcp.WithString("file",
			mcp.Description("File name recorded in the block metadata"),
		),
	), tools.add)

	return srv
}

func (t *ragTools) search(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := t.ledger.Search(ctx, q, request.GetInt("k", t.results))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response strings.Builder
	for _, r := range res {
		raw, err := json.Marshal(searchHit{
			ID:         r.ID,
			Score:      r.Score,
			File:       r.Metadata.File,
			BlockTitle: r.Metadata.BlockTitle,
			Text:       r.Content,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		response.Write(raw)
		response.WriteByte('\n')
	}

	return mcp.NewToolResultText(response.String()), nil
}

func (t *ragTools) get(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r, ok, err := t.ledger.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultText(fmt.Sprintf("block %s not found", id)), nil
	}

	raw, err := json.Marshal(r)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(string(raw)), nil
}

func (t *ragTools) add(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	file := request.GetString("file", defaultSourceName)

	records, err := t.ledger.IngestText(ctx, text, file)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}

	return mcp.NewToolResultText(fmt.Sprintf("added %d blocks: %s", len(records), strings.Join(ids, ", "))), nil
}
