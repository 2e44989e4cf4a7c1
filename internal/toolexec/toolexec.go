// Package toolexec implements the local tool contract the engine calls
// over JSON-RPC: sandboxed filesystem access, pattern search, command
// execution, and host capability queries.
package toolexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/rpc"
	"github.com/Radix-Obsidian/Voco-ai-sub000/internal/secscan"
)

// Method names served by the executor.
const (
	MethodReadFile       = "local/read_file"
	MethodWriteFile      = "local/write_file"
	MethodListDirectory  = "local/list_directory"
	MethodGlobFind       = "local/glob_find"
	MethodSearchProject  = "local/search_project"
	MethodExecuteCommand = "local/execute_command"
	MethodScanSecurity   = "local/scan_security"
	MethodRecentFrames   = "local/get_recent_frames"
	MethodDiscoverTools  = "local/discover_tools"
)

const (
	defaultListDepth   = 3
	defaultGlobResults = 50
)

// FrameProvider supplies recent screen captures for visual context.
type FrameProvider interface {
	Base64() []string
}

// Executor hosts the local tool handlers. Frame and catalog providers are
// optional; their methods answer capability-unavailable when unset.
type Executor struct {
	logger  *slog.Logger
	rgPath  string
	frames  FrameProvider
	catalog func() []string
}

// New builds an executor. The ripgrep binary is resolved once; search
// degrades to capability-unavailable when it is missing.
func New(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	rgPath, err := exec.LookPath("rg")
	if err != nil {
		logger.Warn("ripgrep not found, local/search_project disabled")
		rgPath = ""
	}
	return &Executor{logger: logger, rgPath: rgPath}
}

// SetFrameProvider wires the screen buffer into get_recent_frames.
func (e *Executor) SetFrameProvider(fp FrameProvider) { e.frames = fp }

// SetCatalog wires a method catalog into discover_tools.
func (e *Executor) SetCatalog(fn func() []string) { e.catalog = fn }

// Register installs every executor method on the dispatcher.
func (e *Executor) Register(d *rpc.Dispatcher) {
	d.Register(MethodReadFile, e.ReadFile)
	d.Register(MethodWriteFile, e.WriteFile)
	d.Register(MethodListDirectory, e.ListDirectory)
	d.Register(MethodGlobFind, e.GlobFind)
	d.Register(MethodSearchProject, e.SearchProject)
	d.Register(MethodExecuteCommand, e.ExecuteCommand)
	d.Register(MethodScanSecurity, e.ScanSecurity)
	d.Register(MethodRecentFrames, e.RecentFrames)
	d.Register(MethodDiscoverTools, e.DiscoverTools)
}

// ReadFile returns file contents, optionally sliced to a 1-based inclusive
// line range.
func (e *Executor) ReadFile(_ context.Context, params json.RawMessage) (any, error) {
	var p struct {
		FilePath    string `json:"file_path"`
		ProjectRoot string `json:"project_root"`
		StartLine   int    `json:"start_line,omitempty"`
		EndLine     int    `json:"end_line,omitempty"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, rpc.InvalidParams("decode params: %v", err)
	}
	if p.FilePath == "" {
		return nil, rpc.InvalidParams("file_path is required")
	}

	path, err := resolveWithin(p.ProjectRoot, p.FilePath)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.FilePath, err)
	}
	if p.StartLine <= 0 && p.EndLine <= 0 {
		return string(content), nil
	}

	lines := strings.Split(string(content), "\n")
	start := p.StartLine
	if start <= 0 {
		start = 1
	}
	end := p.EndLine
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) || start > end {
		return nil, rpc.InvalidParams("line range %d-%d out of bounds for %d lines", p.StartLine, p.EndLine, len(lines))
	}
	return strings.Join(lines[start-1:end], "\n"), nil
}

// WriteFile writes content inside the project root, creating parent
// directories as needed.
func (e *Executor) WriteFile(_ context.Context, params json.RawMessage) (any, error) {
	var p struct {
		FilePath    string `json:"file_path"`
		ProjectRoot string `json:"project_root"`
		Content     string `json:"content"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, rpc.InvalidParams("decode params: %v", err)
	}
	if p.FilePath == "" {
		return nil, rpc.InvalidParams("file_path is required")
	}

	path, err := resolveWithin(p.ProjectRoot, p.FilePath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(path, []byte(p.Content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", p.FilePath, err)
	}

	e.logger.Info("file written", slog.String("path", path), slog.Int("bytes", len(p.Content)))
	return fmt.Sprintf("Written %d bytes to %s", len(p.Content), path), nil
}

// DirEntry is one row of a directory listing.
type DirEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size,omitempty"`
}

// ListDirectory walks a directory to a bounded depth.
func (e *Executor) ListDirectory(_ context.Context, params json.RawMessage) (any, error) {
	var p struct {
		DirPath     string `json:"dir_path"`
		ProjectRoot string `json:"project_root"`
		MaxDepth    int    `json:"max_depth,omitempty"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, rpc.InvalidParams("decode params: %v", err)
	}
	if p.DirPath == "" {
		p.DirPath = "."
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = defaultListDepth
	}

	dir, err := resolveWithin(p.ProjectRoot, p.DirPath)
	if err != nil {
		return nil, err
	}

	entries := []DirEntry{}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		depth := len(strings.Split(rel, string(filepath.Separator)))
		if depth > p.MaxDepth {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		entry := DirEntry{Path: rel, Type: "file"}
		if d.IsDir() {
			entry.Type = "dir"
		} else if info, err := d.Info(); err == nil {
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p.DirPath, err)
	}
	return entries, nil
}

// GlobFind matches files under the project path with doublestar patterns.
func (e *Executor) GlobFind(_ context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Pattern     string `json:"pattern"`
		ProjectPath string `json:"project_path"`
		FileType    string `json:"file_type,omitempty"`
		MaxResults  int    `json:"max_results,omitempty"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, rpc.InvalidParams("decode params: %v", err)
	}
	if p.Pattern == "" {
		return nil, rpc.InvalidParams("pattern is required")
	}
	if p.FileType == "" {
		p.FileType = "file"
	}
	if p.MaxResults <= 0 {
		p.MaxResults = defaultGlobResults
	}

	root, err := resolveWithin(p.ProjectPath, ".")
	if err != nil {
		return nil, err
	}

	fsys := os.DirFS(root)
	matches, err := doublestar.Glob(fsys, p.Pattern)
	if err != nil {
		return nil, rpc.InvalidParams("bad glob pattern %q: %v", p.Pattern, err)
	}

	results := []string{}
	for _, m := range matches {
		info, err := fs.Stat(fsys, m)
		if err != nil {
			continue
		}
		if p.FileType == "file" && info.IsDir() {
			continue
		}
		if p.FileType == "dir" && !info.IsDir() {
			continue
		}
		results = append(results, m)
		if len(results) >= p.MaxResults {
			break
		}
	}
	return results, nil
}

// SearchProject shells to ripgrep. Exit code 1 means no matches, which is
// a result, not an error.
func (e *Executor) SearchProject(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Pattern     string `json:"pattern"`
		ProjectPath string `json:"project_path"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, rpc.InvalidParams("decode params: %v", err)
	}
	if p.Pattern == "" {
		return nil, rpc.InvalidParams("pattern is required")
	}
	if e.rgPath == "" {
		return nil, fmt.Errorf("ripgrep not installed: %w", rpc.ErrCapabilityUnavailable)
	}

	root, err := resolveWithin(p.ProjectPath, ".")
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.rgPath,
		"--column", "--line-number", "--no-heading", "--color=never",
		p.Pattern, root)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "No matches found.", nil
		}
		return nil, fmt.Errorf("ripgrep failed: %w", err)
	}
	return string(out), nil
}

// ExecuteCommand runs a shell command in a project directory and returns
// combined output. The path must be absolute and exist; approval policy
// lives upstream in the HITL flow.
func (e *Executor) ExecuteCommand(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Command     string `json:"command"`
		ProjectPath string `json:"project_path"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, rpc.InvalidParams("decode params: %v", err)
	}
	if p.Command == "" {
		return nil, rpc.InvalidParams("command is required")
	}
	if !filepath.IsAbs(p.ProjectPath) {
		return nil, rpc.InvalidParams("project_path must be absolute: %q", p.ProjectPath)
	}
	dir, err := filepath.EvalSymlinks(p.ProjectPath)
	if err != nil {
		return nil, fmt.Errorf("project path not accessible: %w", err)
	}

	e.logger.Info("executing command", slog.String("command", p.Command), slog.String("dir", dir))

	cmd := exec.CommandContext(ctx, "sh", "-c", p.Command)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("command failed (%v): %s", err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// ScanSecurity runs the secret/dependency scanner.
func (e *Executor) ScanSecurity(_ context.Context, params json.RawMessage) (any, error) {
	var p struct {
		ProjectPath string `json:"project_path"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, rpc.InvalidParams("decode params: %v", err)
	}
	report, err := secscan.Scan(p.ProjectPath)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// RecentFrames returns buffered screen captures for visual context.
func (e *Executor) RecentFrames(context.Context, json.RawMessage) (any, error) {
	if e.frames == nil {
		return nil, fmt.Errorf("screen capture not configured: %w", rpc.ErrCapabilityUnavailable)
	}
	return map[string]any{
		"frames":     e.frames.Base64(),
		"media_type": "image/jpeg",
	}, nil
}

// DiscoverTools reports the methods this host serves.
func (e *Executor) DiscoverTools(context.Context, json.RawMessage) (any, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("discovery not supported in this host: %w", rpc.ErrCapabilityUnavailable)
	}
	return map[string]any{"tools": e.catalog()}, nil
}
