package util

import "runtime"

// GetOptimalPoolSize returns the pool size used for CPU-bound work.
//
// Formula: min(max(runtime.NumCPU() * 2, 4), 32)
//
// Tree-sitter parsing runs through CGO, so twice the core count keeps
// cores busy while goroutines sit in C calls. The same value sizes the
// parser pools, the analysis worker pool and the checksum group, so a
// worker never waits on a parser.
//
// Examples:
//   - 1-2 cores: 4 (minimum enforced)
//   - 8 cores: 16
//   - 24 cores: 32 (capped)
func GetOptimalPoolSize() int {
	poolSize := runtime.NumCPU() * 2

	if poolSize < 4 {
		poolSize = 4
	}
	if poolSize > 32 {
		poolSize = 32
	}

	return poolSize
}

// GetOptimalPoolSizeWithOverride returns override when positive and
// GetOptimalPoolSize() otherwise. Config and CLI flags feed override.
func GetOptimalPoolSizeWithOverride(override int) int {
	if override > 0 {
		return override
	}
	return GetOptimalPoolSize()
}
