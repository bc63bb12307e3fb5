// Package hasher computes content digests of files.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"dirwatch/internal/storage"
)

// ChunkSize is the read granularity used when streaming file content.
const ChunkSize = 8 * 1024

// HashFile returns the lowercase hex SHA-256 digest of the file at path,
// reading it in ChunkSize pieces. Errors wrap storage.ErrIO.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, storage.WrapIO(err))
	}
	defer func() { _ = f.Close() }()

	digest, err := HashReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to hash file %s: %w", path, err)
	}
	return digest, nil
}

// HashReader digests everything r yields.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", storage.WrapIO(err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes digests an in-memory buffer.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
