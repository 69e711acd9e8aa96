package store

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of entries each CachedStore cache holds.
const DefaultCacheSize = 1024

// CachedStore decorates a Store with LRU caches for the lookups that are
// safe to cache: file rows are immutable once their scan succeeded, so a
// positive FindFileByChecksum or GetFile answer never goes stale. Misses
// are not cached because the next scan may create the row.
type CachedStore struct {
	Store

	fileIDs *lru.Cache[string, int64]
	files   *lru.Cache[int64, *FileDetails]
}

// NewCachedStore wraps inner with caches of the given size.
func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	fileIDs, err := lru.New[string, int64](size)
	if err != nil {
		return nil, err
	}
	files, err := lru.New[int64, *FileDetails](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{Store: inner, fileIDs: fileIDs, files: files}, nil
}

func fileKey(projectID, path, checksum string) string {
	return fmt.Sprintf("%s\x00%s\x00%s", projectID, path, checksum)
}

func (s *CachedStore) FindFileByChecksum(ctx context.Context, projectID, path, checksum string) (int64, error) {
	key := fileKey(projectID, path, checksum)
	if id, ok := s.fileIDs.Get(key); ok {
		return id, nil
	}
	id, err := s.Store.FindFileByChecksum(ctx, projectID, path, checksum)
	if err != nil {
		return 0, err
	}
	s.fileIDs.Add(key, id)
	return id, nil
}

// GetFile hands out copies. The cached value is never shared.
func (s *CachedStore) GetFile(ctx context.Context, fileID int64) (*FileDetails, error) {
	if d, ok := s.files.Get(fileID); ok {
		return d.Clone(), nil
	}
	d, err := s.Store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	owner, err := s.Store.GetScan(ctx, d.File.ScanID)
	if err == nil && owner.Status == ScanSuccess {
		s.files.Add(fileID, d.Clone())
	}
	return d, nil
}

// AbortScan drops cached file details, some of which may belong to the
// aborted scan.
func (s *CachedStore) AbortScan(ctx context.Context, scanID int64) error {
	if err := s.Store.AbortScan(ctx, scanID); err != nil {
		return err
	}
	s.files.Purge()
	return nil
}

// CacheStats reports how many entries each cache currently holds.
func (s *CachedStore) CacheStats() (fileIDs, files int) {
	return s.fileIDs.Len(), s.files.Len()
}
