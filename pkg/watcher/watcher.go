// Package watcher re-runs project scans when source files change.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/gnana997/uigraph/pkg/parser"
	"github.com/gnana997/uigraph/pkg/scanner"
)

// DefaultDebounce is the quiet period after the last change before a
// rescan starts.
const DefaultDebounce = 300 * time.Millisecond

// Scanner runs one scan. *scanner.Orchestrator implements it.
type Scanner interface {
	Scan(ctx context.Context, req scanner.ScanRequest) (*scanner.ScanResult, error)
}

// Options configures a Watcher.
type Options struct {
	// Debounce groups bursts of events into one rescan.
	Debounce time.Duration
	// Exclude holds glob patterns, relative to the root, whose events are
	// ignored. Matching directories are not watched.
	Exclude []string
	// OnScan, when set, receives the outcome of every rescan.
	OnScan func(*scanner.ScanResult, error)
}

// Watcher watches a project tree and rescans it after changes.
//
// Any number of events inside the debounce window produce one scan, and
// scans never overlap: an event arriving during a scan schedules another
// one after it.
//
// Usage:
//
//	w, err := watcher.New(orchestrator, req, opts, logger)
//	if err != nil {
//	    return err
//	}
//	if err := w.Start(ctx); err != nil {
//	    return err
//	}
//	defer w.Stop()
type Watcher struct {
	fs      *fsnotify.Watcher
	scanner Scanner
	req     scanner.ScanRequest
	root    string
	opts    Options
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	timerMu sync.Mutex
	timer   *time.Timer
	scanMu  sync.Mutex
	wg      sync.WaitGroup

	// dirs holds the watched directories. A directory that is gone cannot
	// be stat'ed, so its Remove or Rename event is recognized from here.
	dirsMu sync.Mutex
	dirs   map[string]struct{}

	mu       sync.Mutex
	started  bool
	stopped  bool
	rescans  int
	lastScan *scanner.ScanResult
}

// New creates a watcher for req.Root.
func New(sc Scanner, req scanner.ScanRequest, opts Options, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern: %s", pattern)
		}
	}
	root, err := filepath.Abs(req.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		fs:      fsw,
		scanner: sc,
		req:     req,
		root:    root,
		opts:    opts,
		logger:  logger,
		dirs:    make(map[string]struct{}),
	}, nil
}

// Start adds watches for the tree and begins processing events in the
// background. The watcher stops when ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped || w.started {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started or stopped")
	}
	w.started = true
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		return err
	}

	w.logger.Info("file watcher started", "root", w.root, "debounce", w.opts.Debounce)

	w.wg.Add(1)
	go w.eventLoop()
	return nil
}

// Stop ends event processing and waits for a running rescan to finish.
// Safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()

	err := w.fs.Close()
	w.wg.Wait()

	// Wait for an in-flight rescan.
	w.scanMu.Lock()
	defer w.scanMu.Unlock()

	w.logger.Info("file watcher stopped")
	return err
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
			return nil
		}
		w.dirsMu.Lock()
		w.dirs[path] = struct{}{}
		w.dirsMu.Unlock()
		return nil
	})
}

// forgetTree drops dir and everything below it from the watched set. It
// reports whether dir was watched.
func (w *Watcher) forgetTree(dir string) bool {
	w.dirsMu.Lock()
	defer w.dirsMu.Unlock()

	if _, ok := w.dirs[dir]; !ok {
		return false
	}
	prefix := dir + string(filepath.Separator)
	for d := range w.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
			// A renamed directory keeps its watch under the old name.
			_ = w.fs.Remove(d)
		}
	}
	return true
}

func (w *Watcher) watchedDirs() int {
	w.dirsMu.Lock()
	defer w.dirsMu.Unlock()
	return len(w.dirs)
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if w.ignored(path) {
		return
	}

	if event.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			if err := w.addTree(path); err != nil {
				w.logger.Warn("failed to watch new directory", "path", path, "error", err)
			}
			w.schedule()
			return
		}
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.forgetTree(path) {
		w.logger.Debug("directory event", "op", event.Op.String(), "dir", path)
		w.schedule()
		return
	}

	if !parser.IsSupportedFile(path) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.logger.Debug("file event", "op", event.Op.String(), "file", path)
	w.schedule()
}

// schedule (re)starts the debounce timer.
func (w *Watcher) schedule() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, w.rescan)
}

func (w *Watcher) rescan() {
	w.scanMu.Lock()
	defer w.scanMu.Unlock()

	if w.ctx.Err() != nil {
		return
	}

	res, err := w.scanner.Scan(w.ctx, w.req)
	if err != nil {
		w.logger.Error("rescan failed", "project", w.req.ProjectID, "error", err)
	} else {
		w.logger.Info("rescan complete",
			"project", w.req.ProjectID,
			"scan_id", res.ScanID,
			"skipped", res.Skipped,
			"analyzed", res.Stats.FilesAnalyzed,
			"reused", res.Stats.FilesReused)
	}

	w.mu.Lock()
	w.rescans++
	if err == nil {
		w.lastScan = res
	}
	w.mu.Unlock()

	if w.opts.OnScan != nil {
		w.opts.OnScan(res, err)
	}
}

// ignored reports whether an absolute path falls under an exclude pattern.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.opts.Exclude {
		if matched, _ := doublestar.PathMatch(pattern, rel); matched {
			return true
		}
	}
	return false
}

// GetStats returns watcher statistics.
func (w *Watcher) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	stats := Stats{Rescans: w.rescans, WatchedDirs: w.watchedDirs(), IsRunning: w.started && !w.stopped}
	if w.lastScan != nil {
		stats.LastScanID = w.lastScan.ScanID
	}
	return stats
}

// Stats contains watcher statistics.
type Stats struct {
	Rescans     int
	LastScanID  int64
	WatchedDirs int
	IsRunning   bool
}
