package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/uigraph/pkg/graph"
	"github.com/gnana997/uigraph/pkg/scanner"
)

const serverVersion = "0.1.0-dev"

// Scanner runs one scan. *scanner.Orchestrator implements it.
type Scanner interface {
	Scan(ctx context.Context, req scanner.ScanRequest) (*scanner.ScanResult, error)
}

// Config wires a Server to its collaborators.
type Config struct {
	Query   *graph.QueryService
	Scanner Scanner
	// ProjectID and Root are used when a tool call does not name them.
	ProjectID string
	Root      string
	// CallLog is optional. Calls are always reported to Logger.
	CallLog *CallLog
	Logger  *slog.Logger
}

// Server implements the MCP server for uigraph, exposing scan and graph
// query tools.
type Server struct {
	mcpServer *server.MCPServer
	query     *graph.QueryService
	scanner   Scanner
	projectID string
	root      string
	callLog   *CallLog
	logger    *slog.Logger
}

// NewServer creates a new MCP server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		query:     cfg.Query,
		scanner:   cfg.Scanner,
		projectID: cfg.ProjectID,
		root:      cfg.Root,
		callLog:   cfg.CallLog,
		logger:    logger,
	}

	s.mcpServer = server.NewMCPServer("uigraph", serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(s.callMiddleware()),
	)
	s.mcpServer.AddTools(s.tools()...)

	return s
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: scanProjectTool(), Handler: s.handleScanProject},
		{Tool: listScansTool(), Handler: s.handleListScans},
		{Tool: listComponentsTool(), Handler: s.handleListComponents},
		{Tool: getComponentGraphTool(), Handler: s.handleGetComponentGraph},
		{Tool: getComponentDependenciesTool(), Handler: s.handleGetComponentDependencies},
		{Tool: getComponentDependentsTool(), Handler: s.handleGetComponentDependents},
		{Tool: getFileDetailsTool(), Handler: s.handleGetFileDetails},
	}
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
