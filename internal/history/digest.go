package history

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// FileDigest returns the size and BLAKE3 hash of a finished recording.
func FileDigest(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	h := blake3.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", fmt.Errorf("failed to hash file: %w", err)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyDigest checks a file against a recorded BLAKE3 hash.
func VerifyDigest(path, expected string) error {
	_, actual, err := FileDigest(path)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s", path, expected, actual)
	}
	return nil
}
