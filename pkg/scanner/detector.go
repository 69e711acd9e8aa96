package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gnana997/uigraph/pkg/store"
)

// ChangeDetector decides from scan history what a new scan may skip. It
// only reads history.
type ChangeDetector struct {
	history store.HistoryReader
	logger  *slog.Logger
}

// NewChangeDetector creates a detector over history.
func NewChangeDetector(history store.HistoryReader, logger *slog.Logger) *ChangeDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeDetector{history: history, logger: logger}
}

// ShouldSkip reports whether a successful scan of the project already
// recorded aggregate, and if so which one.
func (d *ChangeDetector) ShouldSkip(ctx context.Context, projectID, aggregate string) (int64, bool, error) {
	prior, err := d.history.FindScanByChecksum(ctx, projectID, aggregate)
	if errors.Is(err, store.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: find scan for project %q: %w", ErrHistoryLookup, projectID, err)
	}
	d.logger.Debug("aggregate checksum already scanned", "project", projectID, "scan_id", prior.ID)
	return prior.ID, true, nil
}

// KnownFile returns the ID of an earlier analysis of path with the same
// content.
func (d *ChangeDetector) KnownFile(ctx context.Context, projectID, path, sum string) (int64, bool, error) {
	id, err := d.history.FindFileByChecksum(ctx, projectID, path, sum)
	if errors.Is(err, store.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: find file %s: %w", ErrHistoryLookup, path, err)
	}
	return id, true, nil
}
