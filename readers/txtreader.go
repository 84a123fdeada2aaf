package readers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type TxtFileReader struct{}

func (r *TxtFileReader) CanRead(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".txt" || ext == ".md"
}

func (r *TxtFileReader) ReadText(path string) (string, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading text file: %w", err)
	}

	return Decode(buf), nil
}

// Decode reads buf as UTF-8, dropping invalid bytes.
func Decode(buf []byte) string {
	return strings.ToValidUTF8(string(buf), "")
}
