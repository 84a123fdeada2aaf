package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrManifestCorrupt = errors.New("manifest is corrupt")

type ManifestItem struct {
	ID         string `json:"id"`
	File       string `json:"file"`
	BlockTitle string `json:"block_title"`
}

// Manifest is the append-only list of blocks written to the index.
type Manifest struct {
	Items []ManifestItem `json:"items"`
}

// LoadManifest reads the manifest at path. A missing file gives an empty
// manifest. Content that is not an object with an items list gives an empty
// manifest together with ErrManifestCorrupt.
func LoadManifest(path string) (*Manifest, error) {
	m := &Manifest{Items: []ManifestItem{}}

	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var raw map[string]json.RawMessage
	err = json.Unmarshal(buf, &raw)
	if err != nil {
		return m, fmt.Errorf("%w: %w", ErrManifestCorrupt, err)
	}

	items, ok := raw["items"]
	if !ok || !bytes.HasPrefix(bytes.TrimSpace(items), []byte("[")) {
		return m, fmt.Errorf("%w: missing items list", ErrManifestCorrupt)
	}

	var parsed []ManifestItem
	err = json.Unmarshal(items, &parsed)
	if err != nil {
		return m, fmt.Errorf("%w: %w", ErrManifestCorrupt, err)
	}
	if parsed != nil {
		m.Items = parsed
	}

	return m, nil
}

func (m *Manifest) Append(items ...ManifestItem) {
	m.Items = append(m.Items, items...)
}

// Save rewrites the whole manifest at path through a temporary file.
func (m *Manifest) Save(path string) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create manifest dir: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	err = enc.Encode(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	err = tmp.Chmod(0o644)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	_, err = tmp.Write(buf.Bytes())
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return fmt.Errorf("failed to replace manifest: %w", err)
	}

	return nil
}
