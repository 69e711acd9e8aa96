package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gnana997/uigraph/pkg/graph"
	mcpserver "github.com/gnana997/uigraph/pkg/mcp"
	"github.com/gnana997/uigraph/pkg/scanner"
	"github.com/gnana997/uigraph/pkg/watcher"
)

func runScan(cmd *cobra.Command, args []string) error {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("failed to read --json flag: %w", err)
	}

	a, err := newApp(cmd, args)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.scan(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, res)
	}
	printScanSummary(out, a.cfg.Project, res)
	return nil
}

func runGraph(cmd *cobra.Command, args []string) error {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("failed to read --json flag: %w", err)
	}
	keyword, err := cmd.Flags().GetString("component")
	if err != nil {
		return fmt.Errorf("failed to read --component flag: %w", err)
	}

	a, err := newApp(cmd, args)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.scan(cmd.Context()); err != nil {
		return err
	}
	g, err := a.query.ProjectGraph(cmd.Context(), a.cfg.Project)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, g)
	}
	printGraph(out, a.cfg.Project, g, keyword)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	debounce, err := cmd.Flags().GetInt("debounce")
	if err != nil {
		return fmt.Errorf("failed to read --debounce flag: %w", err)
	}

	a, err := newApp(cmd, args)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	res, err := a.scan(ctx)
	if err != nil {
		return err
	}
	printScanSummary(out, a.cfg.Project, res)

	if debounce <= 0 {
		debounce = a.cfg.DebounceMs
	}
	w, err := watcher.New(a.orch, a.request(), watcher.Options{
		Debounce: time.Duration(debounce) * time.Millisecond,
		Exclude:  a.cfg.Scan.Exclude,
		OnScan: func(res *scanner.ScanResult, err error) {
			if err == nil {
				printScanSummary(out, a.cfg.Project, res)
			}
		},
	}, a.logger)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintf(out, "watching %s (ctrl-c to stop)\n", a.cfg.Root)
	<-ctx.Done()
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, args)
	if err != nil {
		return err
	}
	defer a.Close()

	callLog, err := mcpserver.NewCallLog(a.cfg.CallLog)
	if err != nil {
		return err
	}
	defer callLog.Close()

	srv := mcpserver.NewServer(mcpserver.Config{
		Query:     a.query,
		Scanner:   a.orch,
		ProjectID: a.cfg.Project,
		Root:      a.cfg.Root,
		CallLog:   callLog,
		Logger:    a.logger,
	})
	a.logger.Info("mcp server starting", "project", a.cfg.Project, "root", a.cfg.Root)
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// --- output ---

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printScanSummary(w io.Writer, project string, res *scanner.ScanResult) {
	if res.Skipped {
		fmt.Fprintf(w, "scan %d (%s): unchanged, skipped\n", res.ScanID, project)
		return
	}
	s := res.Stats
	fmt.Fprintf(w, "scan %d (%s): %d files, %d analyzed, %d reused, %d failed in %dms\n",
		res.ScanID, project, s.FilesDiscovered, s.FilesAnalyzed, s.FilesReused, s.FilesFailed, s.TotalTimeMs)
	fmt.Fprintf(w, "  components: %d, edges: %d, unresolved: %d\n", s.Components, s.Edges, s.EdgesDropped)
	for _, f := range res.Files {
		if f.Err != nil {
			fmt.Fprintf(w, "  failed %s: %v\n", f.Path, f.Err)
		}
	}
}

func printGraph(w io.Writer, project string, g *graph.ProjectGraph, keyword string) {
	idx := g.BuildIndex()
	keyword = strings.ToLower(keyword)

	byFile := make(map[int64][]string)
	for _, e := range g.Edges {
		if keyword != "" &&
			!strings.Contains(strings.ToLower(e.ParentName), keyword) &&
			!strings.Contains(strings.ToLower(e.ChildName), keyword) {
			continue
		}
		byFile[e.FileID] = append(byFile[e.FileID], fmt.Sprintf("%s -> %s", e.ParentName, e.ChildName))
	}

	fmt.Fprintf(w, "project %s, scan %d: %d files, %d components, %d edges\n",
		project, g.Scan.ID, len(g.Files), len(g.Components), len(g.Edges))

	paths := make([]string, 0, len(byFile))
	edgesByPath := make(map[string][]string, len(byFile))
	for fileID, edges := range byFile {
		path := fmt.Sprintf("file %d", fileID)
		if f, ok := idx.FileByID[fileID]; ok {
			path = f.Path
		}
		paths = append(paths, path)
		edgesByPath[path] = edges
	}
	sort.Strings(paths)

	for _, path := range paths {
		fmt.Fprintf(w, "\n%s\n", path)
		for _, e := range edgesByPath[path] {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}
