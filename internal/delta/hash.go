package delta

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
)

// HashRows fingerprints a table and returns "sha256:<hex>".
// Cells are tab separated and rows newline terminated, so equal listings hash equally
// regardless of how they are styled on screen.
func HashRows(rows [][]string) string {
	h := sha256.New()
	for _, row := range rows {
		io.WriteString(h, strings.Join(row, "\t"))
		io.WriteString(h, "\n")
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// Short trims a digest to its prefix and the first 12 hex characters.
func Short(digest string) string {
	const n = len("sha256:") + 12
	if len(digest) <= n {
		return digest
	}
	return digest[:n]
}
