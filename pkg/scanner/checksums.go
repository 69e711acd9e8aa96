package scanner

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/gnana997/uigraph/pkg/checksum"
	"github.com/gnana997/uigraph/pkg/store"
)

// HashedFile is a discovered file with its content checksum. Err is set
// when the file could not be read.
type HashedFile struct {
	SourceFile
	Checksum string
	Err      error
}

// ComputeChecksums hashes every file with at most limit concurrent reads
// and returns only when all of them are done. Unreadable files carry
// their error instead of failing the batch. The result is in input order.
func ComputeChecksums(ctx context.Context, files []SourceFile, limit int) ([]HashedFile, error) {
	out := make([]HashedFile, len(files))
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum, err := checksum.SumFile(f.AbsPath)
			out[i] = HashedFile{SourceFile: f, Checksum: sum, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// aggregateOf computes the aggregate checksum of the readable files.
func aggregateOf(files []HashedFile) string {
	entries := make([]checksum.Entry, 0, len(files))
	for _, f := range files {
		if f.Err != nil {
			continue
		}
		entries = append(entries, checksum.Entry{Path: f.Path, Digest: f.Checksum})
	}
	return checksum.AggregateEntries(entries)
}

// coveredAggregate computes the aggregate checksum of the files a scan
// linked or analyzed. A parse failure is a verdict on the content and
// stays in; read failures and content that changed mid-scan do not.
func coveredAggregate(outcomes []FileOutcome) string {
	entries := make([]checksum.Entry, 0, len(outcomes))
	for _, f := range outcomes {
		if f.Err != nil && failureKind(f.Err) != store.FailureParse {
			continue
		}
		entries = append(entries, checksum.Entry{Path: f.Path, Digest: f.Checksum})
	}
	return checksum.AggregateEntries(entries)
}
