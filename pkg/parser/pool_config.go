package parser

import (
	"github.com/gnana997/uigraph/pkg/util"
)

// getPoolSize returns the number of parsers each language pool may hold.
//
// It MUST match the analysis worker count, otherwise workers block while
// waiting for a parser. Both sides go through util.GetOptimalPoolSize so
// an unset override lands on the same number.
func getPoolSize(override int) int {
	return util.GetOptimalPoolSizeWithOverride(override)
}
