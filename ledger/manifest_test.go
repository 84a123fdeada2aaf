package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LoadManifest_Missing(t *testing.T) {
	m, err := LoadManifest(filepath.Join(t.TempDir(), "ids.json"))
	require.NoError(t, err)
	assert.Empty(t, m.Items)
}

func Test_LoadManifest_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	m, err := LoadManifest(path)
	assert.ErrorIs(t, err, ErrManifestCorrupt)
	require.NotNil(t, m)
	assert.Empty(t, m.Items)
}

func Test_Manifest_Save(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ids.json")

	m := &Manifest{}
	m.Append(ManifestItem{ID: "1", File: "умови.txt", BlockTitle: "Terms & <Conditions>"})
	require.NoError(t, m.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{
  "items": [
    {
      "id": "1",
      "file": "умови.txt",
      "block_title": "Terms & <Conditions>"
    }
  ]
}
`, string(raw))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	loaded, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m.Items, loaded.Items)
}

func Test_Manifest_SaveEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.json")

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.NoError(t, m.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items": []}`, string(raw))
}
