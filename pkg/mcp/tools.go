package mcp

import "github.com/mark3labs/mcp-go/mcp"

func scanProjectTool() mcp.Tool {
	return mcp.NewTool("scan_project",
		mcp.WithDescription("Scan a project tree and record its component graph. Unchanged projects are skipped and unchanged files are reused from earlier scans."),
		mcp.WithString("project", mcp.Description("Project identifier. Defaults to the server's project.")),
		mcp.WithString("root", mcp.Description("Root directory to scan. Defaults to the server's root.")),
	)
}

func listScansTool() mcp.Tool {
	return mcp.NewTool("list_scans",
		mcp.WithDescription("List the recorded scans of a project, newest first."),
		mcp.WithString("project", mcp.Description("Project identifier. Defaults to the server's project.")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of scans to return (default 20).")),
	)
}

func listComponentsTool() mcp.Tool {
	return mcp.NewTool("list_components",
		mcp.WithDescription("List components of the latest successful scan, optionally filtered by a case-insensitive name keyword."),
		mcp.WithString("project", mcp.Description("Project identifier. Defaults to the server's project.")),
		mcp.WithString("keyword", mcp.Description("Substring to match against component names.")),
	)
}

func getComponentGraphTool() mcp.Tool {
	return mcp.NewTool("get_component_graph",
		mcp.WithDescription("Return the component dependency graph (components and parent-renders-child edges) of the latest successful scan."),
		mcp.WithString("project", mcp.Description("Project identifier. Defaults to the server's project.")),
	)
}

func getComponentDependenciesTool() mcp.Tool {
	return mcp.NewTool("get_component_dependencies",
		mcp.WithDescription("List the components a component renders."),
		mcp.WithNumber("component_id", mcp.Required(), mcp.Description("Component ID from list_components.")),
	)
}

func getComponentDependentsTool() mcp.Tool {
	return mcp.NewTool("get_component_dependents",
		mcp.WithDescription("List the components that render a component."),
		mcp.WithNumber("component_id", mcp.Required(), mcp.Description("Component ID from list_components.")),
	)
}

func getFileDetailsTool() mcp.Tool {
	return mcp.NewTool("get_file_details",
		mcp.WithDescription("Return everything recorded for one analyzed file: components, edges, markup usages, imports, exports and functions."),
		mcp.WithNumber("file_id", mcp.Required(), mcp.Description("File ID from get_component_graph.")),
	)
}
