package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
)

// Call outcomes.
const (
	outcomeOK        = "ok"
	outcomeToolError = "tool_error"
	outcomeError     = "error"
)

// CallRecord is one JSONL line of the call log. Handlers fill in what the
// call touched: the project, the scan it read or wrote and the size of
// the graph slice it returned.
type CallRecord struct {
	Time        time.Time      `json:"time"`
	Tool        string         `json:"tool"`
	Project     string         `json:"project,omitempty"`
	Args        map[string]any `json:"args,omitempty"`
	ScanID      int64          `json:"scan_id,omitempty"`
	Skipped     bool           `json:"skipped,omitempty"`
	FilesFailed int            `json:"files_failed,omitempty"`
	Components  int            `json:"components"`
	Edges       int            `json:"edges"`
	ResultBytes int            `json:"result_bytes"`
	DurationMs  int64          `json:"duration_ms"`
	Outcome     string         `json:"outcome"`
	Error       string         `json:"error,omitempty"`
}

type callRecordKey struct{}

// withCallRecord returns a context carrying rec for the handler to fill.
func withCallRecord(ctx context.Context, rec *CallRecord) context.Context {
	return context.WithValue(ctx, callRecordKey{}, rec)
}

// callRecordFrom returns the record of the current call. Outside the
// middleware it returns a scratch record nobody reads.
func callRecordFrom(ctx context.Context) *CallRecord {
	if rec, ok := ctx.Value(callRecordKey{}).(*CallRecord); ok {
		return rec
	}
	return &CallRecord{}
}

// CallLog appends call records to a JSONL file. A nil *CallLog drops
// every record.
type CallLog struct {
	mu      sync.Mutex
	f       *os.File
	written int
}

// NewCallLog opens path for appending, creating missing directories. An
// empty path yields a nil log.
func NewCallLog(path string) (*CallLog, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create call log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open call log: %w", err)
	}
	return &CallLog{f: f}, nil
}

// Append writes rec as a single line.
func (l *CallLog) Append(rec CallRecord) error {
	if l == nil {
		return nil
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode call record: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("write call record: %w", err)
	}
	l.written++
	return nil
}

// Written returns how many records this log appended.
func (l *CallLog) Written() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

func (l *CallLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// maxArgRunes caps logged string arguments. Roots can be long absolute
// paths.
const maxArgRunes = 80

// callArgs copies the tool arguments for the log. The project is carried
// on the record itself and is left out here.
func callArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if k == "project" {
			continue
		}
		if s, ok := v.(string); ok && utf8.RuneCountInString(s) > maxArgRunes {
			r := []rune(s)
			v = "..." + string(r[len(r)-maxArgRunes:])
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// resultBytes sums the text payloads of a result.
func resultBytes(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	n := 0
	for _, c := range result.Content {
		if text, ok := c.(mcp.TextContent); ok {
			n += len(text.Text)
		}
	}
	return n
}
