// Package checksum computes the file digests recorded in catalog metadata.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// FileSHA256 returns the lowercase hex SHA-256 digest of the file at path.
// The file is streamed through the hash, so large products do not need to
// fit in memory.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for checksumming: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read '%s' for checksumming: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
