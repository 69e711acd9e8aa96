package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gnana997/uigraph/pkg/analyzer"
	"github.com/gnana997/uigraph/pkg/parser"
	"github.com/gnana997/uigraph/pkg/store"
	"github.com/gnana997/uigraph/pkg/util"
)

// Orchestrator drives incremental scans into a store.
type Orchestrator struct {
	store    store.Store
	detector *ChangeDetector
	parsers  *parser.ParserManager
	analyzer *analyzer.Analyzer
	files    util.FileCache
	opts     ScanOptions
	workers  int
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator with its own parser pool and
// file cache. Call Close when done.
func NewOrchestrator(st store.Store, opts ScanOptions, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	workers := util.GetOptimalPoolSizeWithOverride(opts.Workers)
	parsers := parser.NewParserManagerWithPoolSize(logger, workers)

	return &Orchestrator{
		store:    st,
		detector: NewChangeDetector(st, logger),
		parsers:  parsers,
		analyzer: analyzer.New(parsers, logger),
		files:    util.NewFileCache(util.DefaultFileCacheConfig()),
		opts:     opts,
		workers:  workers,
		logger:   logger,
	}
}

// Close releases the parser pool and any mapped files.
func (o *Orchestrator) Close() error {
	return errors.Join(o.files.Close(), o.parsers.Close())
}

// Scan runs one incremental scan of req.Root.
//
// A scan whose aggregate checksum matches an earlier successful scan of
// the project returns that scan with Skipped set and writes nothing. The
// aggregate a scan records covers only the files it linked or analyzed.
// Otherwise a new scan is recorded: files seen before with the same
// content are linked, the rest are analyzed. Per-file failures are
// recorded on the scan and do not stop it. History failures and
// persistence failures do, and leave no scan behind.
func (o *Orchestrator) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	totalStart := time.Now()
	stats := ScanStats{WorkerCount: o.workers}

	discoveryStart := time.Now()
	files, err := DiscoverFiles(req.Root, o.opts)
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}
	stats.FilesDiscovered = len(files)
	stats.DiscoveryTimeMs = time.Since(discoveryStart).Milliseconds()

	checksumStart := time.Now()
	hashed, err := ComputeChecksums(ctx, files, o.workers)
	if err != nil {
		return nil, err
	}
	aggregate := aggregateOf(hashed)
	stats.ChecksumTimeMs = time.Since(checksumStart).Milliseconds()

	o.logger.Info("discovery complete",
		"project", req.ProjectID,
		"files", len(files),
		"checksum", short(aggregate),
		"ms", stats.DiscoveryTimeMs+stats.ChecksumTimeMs)

	priorID, skip, err := o.detector.ShouldSkip(ctx, req.ProjectID, aggregate)
	if err != nil {
		return nil, err
	}
	if skip {
		stats.TotalTimeMs = time.Since(totalStart).Milliseconds()
		o.logger.Info("scan skipped, content unchanged", "project", req.ProjectID, "scan_id", priorID)
		return &ScanResult{ScanID: priorID, Skipped: true, Checksum: aggregate, Stats: stats}, nil
	}

	// Every history read happens before the scan record exists.
	known := make(map[string]int64, len(hashed))
	for _, f := range hashed {
		if f.Err != nil {
			continue
		}
		id, ok, err := o.detector.KnownFile(ctx, req.ProjectID, f.Path, f.Checksum)
		if err != nil {
			return nil, err
		}
		if ok {
			known[f.Path] = id
		}
	}

	scan, err := o.store.CreateScan(ctx, req.ProjectID, aggregate)
	if err != nil {
		return nil, fmt.Errorf("create scan: %w", err)
	}

	result := &ScanResult{ScanID: scan.ID, Checksum: aggregate, Files: make([]FileOutcome, len(hashed))}
	if err := o.run(ctx, scan.ID, hashed, known, result, &stats); err != nil {
		if abortErr := o.store.AbortScan(context.WithoutCancel(ctx), scan.ID); abortErr != nil {
			o.logger.Error("abort scan failed", "scan_id", scan.ID, "error", abortErr)
		}
		return nil, err
	}

	// A file that could not be read or changed under the pool was never
	// analyzed. The recorded aggregate leaves it out so the next scan of
	// the same tree is not skipped.
	covered := coveredAggregate(result.Files)
	if covered != aggregate {
		o.logger.Debug("aggregate narrowed to analyzed files", "scan_id", scan.ID, "hashed", short(aggregate), "covered", short(covered))
		result.Checksum = covered
	}
	if _, err := o.store.CompleteScan(ctx, scan.ID, covered); err != nil {
		if abortErr := o.store.AbortScan(context.WithoutCancel(ctx), scan.ID); abortErr != nil {
			o.logger.Error("abort scan failed", "scan_id", scan.ID, "error", abortErr)
		}
		return nil, fmt.Errorf("complete scan %d: %w", scan.ID, err)
	}

	stats.TotalTimeMs = time.Since(totalStart).Milliseconds()
	result.Stats = stats

	o.logger.Info("scan complete",
		"project", req.ProjectID,
		"scan_id", scan.ID,
		"analyzed", stats.FilesAnalyzed,
		"reused", stats.FilesReused,
		"failed", stats.FilesFailed,
		"components", stats.Components,
		"edges", stats.Edges,
		"ms", stats.TotalTimeMs)

	return result, nil
}

// run links reused files, analyzes the rest and persists everything
// against scanID. Outcomes land in result.Files at the index of the file.
func (o *Orchestrator) run(ctx context.Context, scanID int64, hashed []HashedFile, known map[string]int64, result *ScanResult, stats *ScanStats) error {
	var jobs []FileJob
	for i, f := range hashed {
		result.Files[i] = FileOutcome{Path: f.Path, Checksum: f.Checksum}

		if f.Err != nil {
			if err := o.recordFailure(ctx, scanID, f.Path, f.Err, stats); err != nil {
				return err
			}
			result.Files[i].Err = f.Err
			continue
		}
		if id, ok := known[f.Path]; ok {
			if err := o.store.LinkFile(ctx, scanID, id); err != nil {
				return fmt.Errorf("link %s: %w", f.Path, err)
			}
			result.Files[i].FileID = id
			result.Files[i].Reused = true
			stats.FilesReused++
			continue
		}
		jobs = append(jobs, FileJob{File: f, JobID: i})
	}

	if len(jobs) == 0 {
		return nil
	}

	analysisStart := time.Now()
	defer func() { stats.AnalysisTimeMs = time.Since(analysisStart).Milliseconds() }()

	pool := NewWorkerPool(ctx, o.workers, o.analyzer, o.files, o.logger)
	pool.Start()
	defer pool.Stop()

	index := make(map[string]int, len(jobs))
	for _, j := range jobs {
		index[j.File.Path] = j.JobID
	}

	// The collector must be running before jobs are submitted, or a full
	// jobs channel blocks submission forever.
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		for handled := 0; handled < len(jobs); handled++ {
			select {
			case <-ctx.Done():
				runErr = ctx.Err()
				return

			case res := <-pool.Results():
				if err := o.persist(ctx, scanID, res, &result.Files[res.Job.JobID], stats); err != nil {
					runErr = err
					pool.Cancel()
					return
				}

			case fe := <-pool.Errors():
				o.logger.Warn("file analysis failed", "file", fe.Path, "error", fe.Error)
				if err := o.recordFailure(ctx, scanID, fe.Path, fe.Error, stats); err != nil {
					runErr = err
					pool.Cancel()
					return
				}
				result.Files[index[fe.Path]].Err = fe.Error
			}
		}
	}()

	for _, j := range jobs {
		if err := pool.Submit(j); err != nil {
			break
		}
	}
	pool.FinishSubmitting()
	<-done

	return runErr
}

func (o *Orchestrator) persist(ctx context.Context, scanID int64, res FileResult, out *FileOutcome, stats *ScanStats) error {
	fa := res.Analysis
	for _, d := range res.Assembly.Dropped {
		o.logger.Debug("unresolved dependency dropped", "file", fa.Path, "parent", d.Parent, "child", d.Child)
	}

	edges := make([]store.LocalEdge, len(res.Assembly.Edges))
	for i, e := range res.Assembly.Edges {
		edges[i] = store.LocalEdge{Parent: e.Parent, Child: e.Child}
	}

	file, err := o.store.SaveFile(ctx, scanID, store.NewFile{
		Path:     res.Job.File.Path,
		Language: fa.Language.String(),
		Checksum: res.Job.File.Checksum,
		Analysis: fa,
		Edges:    edges,
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", res.Job.File.Path, err)
	}

	out.FileID = file.ID
	out.Analysis = fa
	out.Edges = res.Assembly.Edges
	stats.FilesAnalyzed++
	stats.Components += len(fa.Components)
	stats.Edges += len(res.Assembly.Edges)
	stats.EdgesDropped += len(res.Assembly.Dropped)
	return nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, scanID int64, path string, cause error, stats *ScanStats) error {
	failure := store.FileFailure{Path: path, Kind: failureKind(cause), Message: cause.Error()}
	if err := o.store.RecordFailure(ctx, scanID, failure); err != nil {
		return fmt.Errorf("record failure for %s: %w", path, err)
	}
	stats.FilesFailed++
	return nil
}
