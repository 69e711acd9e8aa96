package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// now is replaceable in tests.
var now = time.Now

// callMiddleware gives every handler a CallRecord to fill, then reports
// the finished record to the structured logger and the call log.
func (s *Server) callMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rec := &CallRecord{
				Time:    now().UTC(),
				Tool:    req.Params.Name,
				Project: req.GetString("project", s.projectID),
				Args:    callArgs(req.GetArguments()),
			}

			result, err := next(withCallRecord(ctx, rec), req)

			rec.DurationMs = now().Sub(rec.Time).Milliseconds()
			rec.ResultBytes = resultBytes(result)
			switch {
			case err != nil:
				rec.Outcome = outcomeError
				rec.Error = err.Error()
			case result != nil && result.IsError:
				rec.Outcome = outcomeToolError
			default:
				rec.Outcome = outcomeOK
			}

			s.logger.Debug("tool call",
				"tool", rec.Tool,
				"project", rec.Project,
				"scan_id", rec.ScanID,
				"outcome", rec.Outcome,
				"components", rec.Components,
				"edges", rec.Edges,
				"bytes", rec.ResultBytes,
				"ms", rec.DurationMs)
			if werr := s.callLog.Append(*rec); werr != nil {
				s.logger.Warn("call log append failed", "tool", rec.Tool, "error", werr)
			}
			return result, err
		}
	}
}
