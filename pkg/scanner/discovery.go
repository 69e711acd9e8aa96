package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/gnana997/uigraph/pkg/parser"
)

// DiscoverFiles walks rootDir applying the extension allowlist, the
// include/exclude globs of opts and, when enabled, the root .gitignore.
// Returns files sorted by relative path.
func DiscoverFiles(rootDir string, opts ScanOptions) ([]SourceFile, error) {
	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern: %s", pattern)
		}
	}
	for _, pattern := range opts.Include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern: %s", pattern)
		}
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absRoot)
	}

	var gi *ignore.GitIgnore
	if opts.RespectGitignore {
		gi, err = loadGitignore(absRoot)
		if err != nil {
			return nil, err
		}
	}

	var files []SourceFile

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Continue walking on errors.
		}
		if path == absRoot {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if excluded(relPath, opts.Exclude) || (gi != nil && gi.MatchesPath(relPath)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !parser.IsSupportedFile(relPath) {
			return nil
		}
		if len(opts.Include) > 0 && !included(relPath, opts.Include) {
			return nil
		}

		files = append(files, SourceFile{Path: relPath, AbsPath: path})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func excluded(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, _ := doublestar.PathMatch(pattern, relPath); matched {
			return true
		}
	}
	return false
}

func included(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		if m, _ := doublestar.PathMatch(pattern, relPath); m {
			return true
		}
	}
	return false
}

func loadGitignore(root string) (*ignore.GitIgnore, error) {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read .gitignore: %w", err)
	}
	return gi, nil
}
