// Package ideconfig injects the gateway's MCP endpoint into IDE config
// files (Cursor, Windsurf) so their agents discover the local tools. The
// merge preserves unrelated entries and skips IDEs that are not
// installed.
package ideconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ServerName is the key written under mcpServers.
const ServerName = "voco-local"

// DefaultEndpoint is the engine's MCP endpoint.
const DefaultEndpoint = "http://localhost:8001/mcp"

// targets are the IDE config locations relative to the home directory.
var targets = []struct {
	IDE  string
	Dir  string
	File string
}{
	{"cursor", ".cursor", "mcp.json"},
	{"windsurf", ".windsurf", "mcp.json"},
}

// Result reports what happened for one IDE.
type Result struct {
	IDE     string
	Path    string
	Skipped bool
	Updated bool
}

// Sync merges the endpoint into every installed IDE's mcp.json under
// home. IDEs whose config directory is absent are skipped, not created.
func Sync(home, endpoint string) ([]Result, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	results := make([]Result, 0, len(targets))
	for _, tgt := range targets {
		dir := filepath.Join(home, tgt.Dir)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			results = append(results, Result{IDE: tgt.IDE, Skipped: true})
			continue
		}

		path := filepath.Join(dir, tgt.File)
		if err := mergeConfig(path, endpoint); err != nil {
			return results, fmt.Errorf("sync %s: %w", tgt.IDE, err)
		}
		results = append(results, Result{IDE: tgt.IDE, Path: path, Updated: true})
	}
	return results, nil
}

// mergeConfig rewrites path with the voco-local server entry added,
// keeping every other top-level key and mcpServers entry intact.
func mergeConfig(path, endpoint string) error {
	config := map[string]json.RawMessage{}
	if content, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(content, &config); err != nil {
			return fmt.Errorf("parse existing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read config: %w", err)
	}

	servers := map[string]json.RawMessage{}
	if raw, ok := config["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &servers); err != nil {
			return fmt.Errorf("parse mcpServers: %w", err)
		}
	}

	entry, err := json.Marshal(map[string]string{"url": endpoint})
	if err != nil {
		return err
	}
	servers[ServerName] = entry

	rawServers, err := json.Marshal(servers)
	if err != nil {
		return err
	}
	config["mcpServers"] = rawServers

	out, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(out, '\n'), 0o644)
}
