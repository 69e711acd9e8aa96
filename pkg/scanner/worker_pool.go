package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gnana997/uigraph/pkg/analyzer"
	"github.com/gnana997/uigraph/pkg/checksum"
	"github.com/gnana997/uigraph/pkg/graph"
	"github.com/gnana997/uigraph/pkg/util"
)

// FileJob is a file to be analyzed by the worker pool.
type FileJob struct {
	File  HashedFile
	JobID int
}

// FileResult is the analysis of one file.
type FileResult struct {
	Job      FileJob
	Analysis *analyzer.FileAnalysis
	Assembly graph.AssembleResult
}

// WorkerPool analyzes files on a fixed set of goroutines.
//
// Each worker reads the file through the shared mmap cache, verifies the
// content still matches the checksum the scan decided on, walks it once
// and assembles its edges. Results and per-file errors go to separate
// channels.
//
// Usage:
//
//	pool := NewWorkerPool(ctx, numWorkers, an, cache, logger)
//	pool.Start()
//	defer pool.Stop()
//
//	// start a collector reading Results() and Errors(), then
//	for _, job := range jobs {
//	    pool.Submit(job)
//	}
//	pool.FinishSubmitting()
type WorkerPool struct {
	numWorkers int
	jobs       chan FileJob
	results    chan FileResult
	errors     chan FileError
	wg         sync.WaitGroup
	analyzer   *analyzer.Analyzer
	files      util.FileCache
	logger     *slog.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	started    atomic.Bool
	stopped    atomic.Bool
	jobsClosed atomic.Bool

	jobsSubmitted atomic.Int64
	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
}

// NewWorkerPool creates a pool bound to ctx. numWorkers 0 picks
// util.GetOptimalPoolSize, which is also the parser pool size, so workers
// never wait on each other for a parser.
func NewWorkerPool(ctx context.Context, numWorkers int, an *analyzer.Analyzer, files util.FileCache, logger *slog.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = util.GetOptimalPoolSize()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers: numWorkers,
		jobs:       make(chan FileJob, numWorkers*2),
		results:    make(chan FileResult, numWorkers),
		errors:     make(chan FileError, numWorkers),
		analyzer:   an,
		files:      files,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start spawns the worker goroutines.
func (wp *WorkerPool) Start() {
	if !wp.started.CompareAndSwap(false, true) {
		wp.logger.Warn("worker pool already started")
		return
	}

	wp.logger.Debug("starting worker pool", "workers", wp.numWorkers)

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return

		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			wp.processJob(id, job)
		}
	}
}

func (wp *WorkerPool) processJob(workerID int, job FileJob) {
	path := job.File.Path

	result, err := wp.analyze(job)
	if err != nil {
		wp.logger.Debug("file analysis failed", "worker_id", workerID, "file", path, "error", err)
		wp.jobsFailed.Add(1)
		select {
		case wp.errors <- FileError{Path: path, Error: err}:
		case <-wp.ctx.Done():
		}
		return
	}

	wp.jobsProcessed.Add(1)
	select {
	case wp.results <- result:
	case <-wp.ctx.Done():
	}
}

func (wp *WorkerPool) analyze(job FileJob) (FileResult, error) {
	f := job.File
	content, err := wp.files.Read(f.AbsPath)
	if err != nil {
		return FileResult{}, fmt.Errorf("failed to read file: %w", err)
	}
	if err := wp.files.Release(f.AbsPath); err != nil {
		wp.logger.Debug("release mapping failed", "file", f.Path, "error", err)
	}

	if actual := checksum.FileChecksum(content); actual != f.Checksum {
		return FileResult{}, &ChecksumMismatchError{Path: f.Path, Expected: f.Checksum, Actual: actual}
	}

	fa, err := wp.analyzer.AnalyzeSource(f.Path, content)
	if err != nil {
		return FileResult{}, err
	}
	return FileResult{Job: job, Analysis: fa, Assembly: graph.AssembleFile(fa)}, nil
}

// Submit enqueues a job. It blocks while the queue is full and fails once
// the pool is stopped or its context is done.
func (wp *WorkerPool) Submit(job FileJob) error {
	if wp.stopped.Load() {
		return fmt.Errorf("worker pool is stopped")
	}

	wp.jobsSubmitted.Add(1)

	select {
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool cancelled: %w", wp.ctx.Err())
	case wp.jobs <- job:
		return nil
	}
}

// Results returns the results channel.
func (wp *WorkerPool) Results() <-chan FileResult {
	return wp.results
}

// Errors returns the per-file errors channel.
func (wp *WorkerPool) Errors() <-chan FileError {
	return wp.errors
}

// FinishSubmitting closes the jobs channel so workers exit once the queue
// drains. Safe to call more than once.
func (wp *WorkerPool) FinishSubmitting() {
	if wp.jobsClosed.CompareAndSwap(false, true) {
		close(wp.jobs)
	}
}

// Cancel stops workers without waiting for queued jobs.
func (wp *WorkerPool) Cancel() {
	wp.cancel()
}

// Stop cancels outstanding work, waits for the workers and closes the
// output channels. Safe to call more than once.
func (wp *WorkerPool) Stop() {
	if !wp.stopped.CompareAndSwap(false, true) {
		return
	}

	wp.cancel()
	wp.FinishSubmitting()
	wp.wg.Wait()

	close(wp.results)
	close(wp.errors)

	wp.logger.Debug("worker pool stopped",
		"jobs_submitted", wp.jobsSubmitted.Load(),
		"jobs_processed", wp.jobsProcessed.Load(),
		"jobs_failed", wp.jobsFailed.Load())
}

// GetStats returns current worker pool statistics.
func (wp *WorkerPool) GetStats() WorkerPoolStats {
	return WorkerPoolStats{
		NumWorkers:    wp.numWorkers,
		JobsSubmitted: wp.jobsSubmitted.Load(),
		JobsProcessed: wp.jobsProcessed.Load(),
		JobsFailed:    wp.jobsFailed.Load(),
		QueueLength:   len(wp.jobs),
	}
}

// WorkerPoolStats contains statistics about the worker pool.
type WorkerPoolStats struct {
	NumWorkers    int
	JobsSubmitted int64
	JobsProcessed int64
	JobsFailed    int64
	QueueLength   int
}
