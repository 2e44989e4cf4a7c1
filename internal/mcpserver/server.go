// Package mcpserver exposes the gateway's sandboxed local tools to IDE
// agents over MCP stdio, so Cursor/Windsurf reach the same executor the
// remote engine calls through JSON-RPC.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/toolexec"
)

// Server wraps the local tool executor as MCP tools.
type Server struct {
	exec *toolexec.Executor
}

// NewServer creates the MCP server wrapper around the shared executor.
func NewServer(exec *toolexec.Executor) *Server {
	return &Server{exec: exec}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("voco", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.readFileTool())
	srv.AddTool(s.listDirectoryTool())
	srv.AddTool(s.searchProjectTool())
	srv.AddTool(s.globFindTool())
	srv.AddTool(s.scanSecurityTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// invoke marshals params, runs the executor handler, and converts the
// outcome into an MCP result. Executor errors become tool errors, not
// protocol errors.
func invoke(ctx context.Context, handler func(context.Context, json.RawMessage) (any, error), params any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal params: %v", err)), nil
	}
	result, err := handler(ctx, raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if text, ok := result.(string); ok {
		return mcp.NewToolResultText(text), nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// voco_read_file
func (s *Server) readFileTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("voco_read_file",
		mcp.WithDescription("Read a file inside the project root, optionally sliced to a 1-based inclusive line range."),
		mcp.WithString("file_path", mcp.Required(), mcp.Description("Path relative to project_root (or absolute inside it)")),
		mcp.WithString("project_root", mcp.Required(), mcp.Description("Project root directory")),
		mcp.WithNumber("start_line", mcp.Description("First line, 1-based")),
		mcp.WithNumber("end_line", mcp.Description("Last line, inclusive")),
	)
	return tool, s.handleReadFile
}

func (s *Server) handleReadFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filePath, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	root, err := request.RequireString("project_root")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return invoke(ctx, s.exec.ReadFile, map[string]any{
		"file_path":    filePath,
		"project_root": root,
		"start_line":   request.GetInt("start_line", 0),
		"end_line":     request.GetInt("end_line", 0),
	})
}

// voco_list_directory
func (s *Server) listDirectoryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("voco_list_directory",
		mcp.WithDescription("List directory contents inside the project root to a bounded depth."),
		mcp.WithString("dir_path", mcp.Description("Directory relative to project_root (default '.')")),
		mcp.WithString("project_root", mcp.Required(), mcp.Description("Project root directory")),
		mcp.WithNumber("max_depth", mcp.Description("Walk depth (default 3)")),
	)
	return tool, s.handleListDirectory
}

func (s *Server) handleListDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := request.RequireString("project_root")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return invoke(ctx, s.exec.ListDirectory, map[string]any{
		"dir_path":     request.GetString("dir_path", "."),
		"project_root": root,
		"max_depth":    request.GetInt("max_depth", 0),
	})
}

// voco_search_project
func (s *Server) searchProjectTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("voco_search_project",
		mcp.WithDescription("Search the project with ripgrep. Returns matching lines with file:line:column prefixes."),
		mcp.WithString("pattern", mcp.Required(), mcp.Description("Regex pattern")),
		mcp.WithString("project_path", mcp.Required(), mcp.Description("Project root directory")),
	)
	return tool, s.handleSearchProject
}

func (s *Server) handleSearchProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pattern, err := request.RequireString("pattern")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := request.RequireString("project_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return invoke(ctx, s.exec.SearchProject, map[string]any{
		"pattern":      pattern,
		"project_path": path,
	})
}

// voco_glob_find
func (s *Server) globFindTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("voco_glob_find",
		mcp.WithDescription("Find files by glob pattern (doublestar syntax, e.g. '**/*.go')."),
		mcp.WithString("pattern", mcp.Required(), mcp.Description("Glob pattern")),
		mcp.WithString("project_path", mcp.Required(), mcp.Description("Project root directory")),
		mcp.WithString("file_type", mcp.Description("'file' (default) or 'dir'")),
		mcp.WithNumber("max_results", mcp.Description("Result cap (default 50)")),
	)
	return tool, s.handleGlobFind
}

func (s *Server) handleGlobFind(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pattern, err := request.RequireString("pattern")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := request.RequireString("project_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return invoke(ctx, s.exec.GlobFind, map[string]any{
		"pattern":      pattern,
		"project_path": path,
		"file_type":    request.GetString("file_type", ""),
		"max_results":  request.GetInt("max_results", 0),
	})
}

// voco_scan_security
func (s *Server) scanSecurityTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("voco_scan_security",
		mcp.WithDescription("Scan a project for leaked credentials in .env files and summarize its dependency manifest."),
		mcp.WithString("project_path", mcp.Required(), mcp.Description("Project root directory")),
	)
	return tool, s.handleScanSecurity
}

func (s *Server) handleScanSecurity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("project_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return invoke(ctx, s.exec.ScanSecurity, map[string]any{"project_path": path})
}
