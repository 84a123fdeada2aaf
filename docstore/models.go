package docstore

// Metadata is stored next to every block in the index.
type Metadata struct {
	File       string `json:"file"`
	BlockTitle string `json:"block_title"`
}

type Entry struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

type SearchResult struct {
	Entry
	Score float32
}

const (
	FileKey       = "file"
	BlockTitleKey = "block_title"
	BlockIDKey    = "block_id"
	ContentKey    = "content"
)
