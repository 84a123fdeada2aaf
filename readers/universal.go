package readers

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"code.sajari.com/docconv/v2"
)

var convertible = []string{".docx", ".odt", ".pdf", ".xml", ".html", ".htm", ".rtf"}

type UniversalFileReader struct {
	txt TxtFileReader
}

func (r *UniversalFileReader) CanRead(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return r.txt.CanRead(path) || slices.Contains(convertible, ext)
}

func (r *UniversalFileReader) ReadText(path string) (string, error) {
	if r.txt.CanRead(path) {
		return r.txt.ReadText(path)
	}

	res, err := docconv.ConvertPath(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}

	return Decode([]byte(res.Body)), nil
}
