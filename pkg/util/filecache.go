package util

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
)

// FileCache serves source file bytes to the analysis workers through
// memory-mapped files.
//
// A scan maps a file when a worker first asks for it, copies the bytes the
// parser will see with Read, and drops the mapping with Release once the
// file's analysis is done. Files that cannot be mapped fall back to
// os.ReadFile.
//
// Thread-safe: multiple goroutines can call methods concurrently.
type FileCache interface {
	// Get returns the mapped file, loading it on first access.
	Get(filePath string) (*MappedFile, error)

	// Read returns a private copy of the file contents. The copy stays
	// valid after Release or Close.
	Read(filePath string) ([]byte, error)

	// Release unmaps a single file. Releasing an unknown path is a no-op.
	Release(filePath string) error

	// Size returns number of currently cached files.
	Size() int

	// Stats returns current cache metrics.
	Stats() FileCacheStats

	// Close unmaps all files and releases resources.
	Close() error
}

// FileCacheConfig controls FileCache behavior.
type FileCacheConfig struct {
	// MaxFiles caps the number of files mapped at the same time.
	// 0 means unlimited. Get fails once the cap is reached.
	MaxFiles int

	// MaxMemoryMB caps the mapped virtual memory. 0 means unlimited.
	MaxMemoryMB int

	// EnableMetrics turns on hit/miss accounting.
	EnableMetrics bool

	// Logger for warnings. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultFileCacheConfig returns limits sized for the analysis worker
// pool. Workers release each file after analysis, so the number of live
// mappings stays close to the worker count.
func DefaultFileCacheConfig() *FileCacheConfig {
	return &FileCacheConfig{
		MaxFiles:      1024,
		MaxMemoryMB:   1024,
		EnableMetrics: true,
	}
}

// UnboundedFileCacheConfig returns a config with no limits.
func UnboundedFileCacheConfig() *FileCacheConfig {
	return &FileCacheConfig{EnableMetrics: true}
}

// MappedFile represents a memory-mapped file.
type MappedFile struct {
	Path string

	// Data is the mapped region. Nil for empty files.
	Data mmap.MMap

	// File is kept open until the mapping is released. Nil for fallback
	// entries.
	File *os.File

	Size     int64
	MappedAt time.Time

	fallback bool
}

// FileCacheStats tracks cache metrics.
type FileCacheStats struct {
	FilesLoaded   int64
	FilesCached   int
	FilesReleased int64
	CacheHits     int64
	CacheMisses   int64
	MmapFailures  int64
	TotalMappedMB float64
}

// ErrCacheLimit is returned by Get when MaxFiles or MaxMemoryMB would be
// exceeded.
var ErrCacheLimit = errors.New("file cache limit reached")

// NewFileCache creates a new FileCache. A nil config uses
// DefaultFileCacheConfig().
func NewFileCache(config *FileCacheConfig) FileCache {
	if config == nil {
		config = DefaultFileCacheConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &fileCacheImpl{
		config: config,
		cache:  make(map[string]*MappedFile),
		logger: logger,
	}
}

type fileCacheImpl struct {
	config *FileCacheConfig
	logger *slog.Logger

	cache map[string]*MappedFile
	mu    sync.RWMutex

	stats   FileCacheStats
	statsMu sync.Mutex
}

func (fc *fileCacheImpl) Get(filePath string) (*MappedFile, error) {
	fc.mu.RLock()
	if mf, ok := fc.cache[filePath]; ok {
		fc.mu.RUnlock()
		fc.record(func(s *FileCacheStats) { s.CacheHits++ })
		return mf, nil
	}
	fc.mu.RUnlock()

	fc.mu.Lock()
	defer fc.mu.Unlock()

	// Another goroutine may have loaded it while we waited.
	if mf, ok := fc.cache[filePath]; ok {
		fc.record(func(s *FileCacheStats) { s.CacheHits++ })
		return mf, nil
	}
	fc.record(func(s *FileCacheStats) { s.CacheMisses++ })

	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file %q: %w", filePath, err)
	}
	if err := fc.checkLimitsLocked(stat.Size()); err != nil {
		return nil, err
	}

	mf, err := fc.loadFile(filePath)
	if err != nil {
		return nil, err
	}

	fc.cache[filePath] = mf
	fc.record(func(s *FileCacheStats) { s.FilesLoaded++ })
	return mf, nil
}

// readAttempts bounds how often Read reloads a file that another caller
// released between load and copy.
const readAttempts = 3

// Read copies under the read lock, so Release and Close cannot unmap the
// region mid-copy.
func (fc *fileCacheImpl) Read(filePath string) ([]byte, error) {
	for attempt := 0; attempt < readAttempts; attempt++ {
		fc.mu.RLock()
		if mf, ok := fc.cache[filePath]; ok {
			out, err := copyMapped(mf)
			fc.mu.RUnlock()
			if attempt == 0 {
				fc.record(func(s *FileCacheStats) { s.CacheHits++ })
			}
			return out, err
		}
		fc.mu.RUnlock()

		if _, err := fc.Get(filePath); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("file %q was released while reading", filePath)
}

// copyMapped copies a mapping. A file truncated underneath the mapping
// faults on access; that fault comes back as an error.
func copyMapped(mf *MappedFile) (out []byte, err error) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("file %q changed while mapped: %v", mf.Path, r)
		}
	}()
	out = make([]byte, len(mf.Data))
	copy(out, mf.Data)
	return out, nil
}

func (fc *fileCacheImpl) Release(filePath string) error {
	fc.mu.Lock()
	mf, ok := fc.cache[filePath]
	if ok {
		delete(fc.cache, filePath)
	}
	fc.mu.Unlock()

	if !ok {
		return nil
	}
	fc.record(func(s *FileCacheStats) { s.FilesReleased++ })
	return unmap(mf)
}

// checkLimitsLocked must be called while holding mu.Lock.
func (fc *fileCacheImpl) checkLimitsLocked(newFileSize int64) error {
	if fc.config.MaxFiles > 0 && len(fc.cache) >= fc.config.MaxFiles {
		return fmt.Errorf("%w: %d files (limit %d)", ErrCacheLimit, len(fc.cache), fc.config.MaxFiles)
	}

	if fc.config.MaxMemoryMB > 0 && newFileSize > 0 {
		currentMB := fc.totalMappedMBLocked()
		newMB := float64(newFileSize) / (1024 * 1024)
		if currentMB+newMB >= float64(fc.config.MaxMemoryMB) {
			return fmt.Errorf("%w: %.2f MB + %.2f MB (limit %d MB)",
				ErrCacheLimit, currentMB, newMB, fc.config.MaxMemoryMB)
		}
	}
	return nil
}

// loadFile maps a file read-only, falling back to os.ReadFile when mmap
// is unavailable for it.
func (fc *fileCacheImpl) loadFile(filePath string) (*MappedFile, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", filePath, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file %q: %w", filePath, err)
	}

	// mmap rejects zero-length mappings.
	if stat.Size() == 0 {
		file.Close()
		return &MappedFile{Path: filePath, MappedAt: time.Now(), fallback: true}, nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		file.Close()
		fc.logger.Warn("mmap failed, using fallback",
			"file", filePath,
			"size", stat.Size(),
			"error", err)

		raw, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, fmt.Errorf("mmap failed and fallback failed for %q: mmap error: %v, read error: %w",
				filePath, err, readErr)
		}
		fc.record(func(s *FileCacheStats) { s.MmapFailures++ })

		return &MappedFile{
			Path:     filePath,
			Data:     mmap.MMap(raw),
			Size:     int64(len(raw)),
			MappedAt: time.Now(),
			fallback: true,
		}, nil
	}

	return &MappedFile{
		Path:     filePath,
		Data:     data,
		File:     file,
		Size:     stat.Size(),
		MappedAt: time.Now(),
	}, nil
}

func (fc *fileCacheImpl) Size() int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return len(fc.cache)
}

func (fc *fileCacheImpl) Stats() FileCacheStats {
	fc.mu.RLock()
	cached := len(fc.cache)
	mappedMB := fc.totalMappedMBLocked()
	fc.mu.RUnlock()

	fc.statsMu.Lock()
	defer fc.statsMu.Unlock()

	stats := fc.stats
	stats.FilesCached = cached
	stats.TotalMappedMB = mappedMB
	return stats
}

// totalMappedMBLocked must be called while holding mu.
func (fc *fileCacheImpl) totalMappedMBLocked() float64 {
	var total int64
	for _, mf := range fc.cache {
		total += mf.Size
	}
	return float64(total) / (1024 * 1024)
}

func (fc *fileCacheImpl) Close() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	var errs []error
	for _, mf := range fc.cache {
		if err := unmap(mf); err != nil {
			fc.logger.Warn("failed to release file", "path", mf.Path, "error", err)
			errs = append(errs, err)
		}
	}
	fc.cache = make(map[string]*MappedFile)

	fc.statsMu.Lock()
	fc.logger.Debug("file cache closed",
		"files_loaded", fc.stats.FilesLoaded,
		"files_released", fc.stats.FilesReleased,
		"mmap_failures", fc.stats.MmapFailures)
	fc.statsMu.Unlock()

	return errors.Join(errs...)
}

func (fc *fileCacheImpl) record(update func(*FileCacheStats)) {
	if !fc.config.EnableMetrics {
		return
	}
	fc.statsMu.Lock()
	update(&fc.stats)
	fc.statsMu.Unlock()
}

func unmap(mf *MappedFile) error {
	if mf.fallback {
		return nil
	}
	var errs []error
	if mf.Data != nil {
		if err := mf.Data.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap %q: %w", mf.Path, err))
		}
	}
	if mf.File != nil {
		if err := mf.File.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", mf.Path, err))
		}
	}
	return errors.Join(errs...)
}
