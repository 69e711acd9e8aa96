// Package checksum implements content-addressed hashing of source files
// and of whole file sets.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// FileChecksum returns the lowercase hex SHA-256 digest of raw file bytes.
func FileChecksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ReadAndSum hashes everything readable from r.
func ReadAndSum(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile streams the file at path through SHA-256.
func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum, err := ReadAndSum(f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}

// EntryDigest binds a file digest to the file's project-relative path.
// Aggregating entry digests instead of bare content digests makes the
// aggregate change when a file is renamed or when two files swap content.
func EntryDigest(relPath, digest string) string {
	return FileChecksum([]byte(relPath + "\x00" + digest))
}

// AggregateChecksum combines per-file digests into one digest for the
// whole set. The digests are sorted first, so the result does not depend
// on enumeration order. The input slice is not modified.
func AggregateChecksum(digests []string) string {
	sorted := make([]string, len(digests))
	copy(sorted, digests)
	sort.Strings(sorted)
	return FileChecksum([]byte(strings.Join(sorted, "|")))
}

// Entry pairs a relative path with its content digest.
type Entry struct {
	Path   string
	Digest string
}

// AggregateEntries is AggregateChecksum over the entry digests of a file
// set.
func AggregateEntries(entries []Entry) string {
	digests := make([]string, len(entries))
	for i, e := range entries {
		digests[i] = EntryDigest(e.Path, e.Digest)
	}
	return AggregateChecksum(digests)
}
