package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "uigraph",
		Short: "Build React component dependency graphs from JS/TS source",
		Long: `uigraph scans a JavaScript or TypeScript project, finds the React
components each file defines and records which component renders which.

Scans are incremental: an unchanged project is skipped and unchanged files
are reused from earlier scans. Configure with .uigraph/config.yaml, a .env
file or UIGRAPH_* environment variables.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("project", "", "Project identifier (default: root directory name)")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL URL for scan history (default: in-memory)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text|json")
	rootCmd.PersistentFlags().Int("workers", 0, "Analysis workers (default: number of CPUs)")

	scanCmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a project and record its component graph",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScan,
	}
	scanCmd.Flags().Bool("json", false, "Print machine-readable scan result")

	graphCmd := &cobra.Command{
		Use:   "graph [path]",
		Short: "Scan a project and print its component graph",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runGraph,
	}
	graphCmd.Flags().Bool("json", false, "Print the graph as JSON")
	graphCmd.Flags().String("component", "", "Only show edges touching components whose name contains this keyword")

	watchCmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Rescan a project whenever its source files change",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWatch,
	}
	watchCmd.Flags().Int("debounce", 0, "Debounce window in milliseconds (default 300)")

	serveCmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Start the MCP server on stdio",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runServe,
	}
	serveCmd.Flags().String("call-log", "", "Append every tool call to this JSONL file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "uigraph %s\n", version)
		},
	}

	rootCmd.AddCommand(scanCmd, graphCmd, watchCmd, serveCmd, versionCmd)
	return rootCmd
}
