// Package secscan scans a project for leaked credentials in .env files and
// summarizes its dependency manifest. Findings report the key name, never
// the secret value.
package secscan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Severity levels, worst first.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// pattern maps a secret-bearing substring to its classification. Order
// matters: more specific prefixes come before their generic fallbacks
// (sk-proj- before sk-), and only the first match per line reports.
type pattern struct {
	Match       string
	Description string
	Severity    string
}

var patterns = []pattern{
	{"sk-proj-", "OpenAI project API key", SeverityCritical},
	{"sk-", "OpenAI/Anthropic-style API key", SeverityHigh},
	{"sk_test_", "Stripe test secret key", SeverityHigh},
	{"sk_live_", "Stripe live secret key", SeverityCritical},
	{"AKIA", "AWS Access Key ID", SeverityCritical},
	{"ghp_", "GitHub Personal Access Token", SeverityHigh},
	{"github_pat_", "GitHub Fine-grained PAT", SeverityHigh},
	{"xai-", "xAI API key", SeverityHigh},
	{"-----BEGIN", "Private key or certificate", SeverityCritical},
	{"ya29.", "Google OAuth access token", SeverityHigh},
	{"EAA", "Facebook/Meta access token", SeverityMedium},
}

// Finding is one suspicious line in an env file.
type Finding struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	Key       string `json:"key"`
	Severity  string `json:"severity"`
	Pattern   string `json:"pattern_matched"`
	IssueType string `json:"issue_type"`
	Note      string `json:"note"`
}

// Dependencies summarizes the project's JS dependency manifest when one
// exists.
type Dependencies struct {
	Source          string            `json:"source,omitempty"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`
	Note            string            `json:"note,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// Report is the full scan result, shaped for the wire.
type Report struct {
	ProjectPath  string        `json:"project_path"`
	Dependencies *Dependencies `json:"dependencies"`
	EnvIssues    []Finding     `json:"env_issues"`
	ScannedAt    string        `json:"scan_timestamp"`
}

// Scan inspects the project root and its immediate services/* directories.
// The path must be absolute.
func Scan(projectPath string) (*Report, error) {
	if !filepath.IsAbs(projectPath) {
		return nil, fmt.Errorf("project_path must be absolute: %q", projectPath)
	}

	report := &Report{
		ProjectPath:  projectPath,
		Dependencies: readManifest(projectPath),
		EnvIssues:    scanEnvFiles(projectPath),
		ScannedAt:    time.Now().Format(time.RFC3339),
	}
	return report, nil
}

func readManifest(root string) *Dependencies {
	pkgPath := filepath.Join(root, "package.json")
	if content, err := os.ReadFile(pkgPath); err == nil {
		var pkg struct {
			Dependencies    map[string]string `json:"dependencies"`
			DevDependencies map[string]string `json:"devDependencies"`
		}
		if err := json.Unmarshal(content, &pkg); err != nil {
			return &Dependencies{Source: "package.json", Error: "parse error"}
		}
		return &Dependencies{
			Source:          "package.json",
			Dependencies:    pkg.Dependencies,
			DevDependencies: pkg.DevDependencies,
		}
	}
	if _, err := os.Stat(filepath.Join(root, "package-lock.json")); err == nil {
		return &Dependencies{
			Source: "package-lock.json",
			Note:   "package-lock.json present, run npm audit for a full CVE report",
		}
	}
	return nil
}

// scanEnvFiles walks the project root plus common monorepo service dirs
// for .env* files and checks non-comment lines for known secret prefixes.
func scanEnvFiles(root string) []Finding {
	findings := []Finding{}

	dirs := []string{root}
	if entries, err := os.ReadDir(filepath.Join(root, "services")); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, filepath.Join(root, "services", e.Name()))
			}
		}
	}

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if !strings.HasPrefix(name, ".env") || entry.IsDir() {
				continue
			}
			path := filepath.Join(dir, name)
			content, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = path
			}
			isExample := strings.Contains(name, "example") ||
				strings.Contains(name, "sample") ||
				strings.Contains(name, "template")
			findings = append(findings, scanLines(string(content), rel, isExample)...)
		}
	}
	return findings
}

func scanLines(content, file string, isExample bool) []Finding {
	var findings []Finding
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if placeholderValue(line) {
			continue
		}
		for _, p := range patterns {
			if !strings.Contains(line, p.Match) {
				continue
			}
			key, _, _ := strings.Cut(line, "=")
			severity := p.Severity
			note := "potentially real secret detected in env file"
			if isExample {
				severity = SeverityLow
				note = "example/template file, verify this is not a real secret"
			}
			findings = append(findings, Finding{
				File:      file,
				Line:      i + 1,
				Key:       strings.TrimSpace(key),
				Severity:  severity,
				Pattern:   p.Match,
				IssueType: p.Description,
				Note:      note,
			})
			break // one issue per line
		}
	}
	return findings
}

// placeholderValue reports whether the value side of KEY=VALUE is a
// template placeholder rather than a real secret.
func placeholderValue(line string) bool {
	_, value, found := strings.Cut(line, "=")
	if !found {
		value = ""
	}
	value = strings.TrimSpace(value)
	lower := strings.ToLower(value)
	return value == "" ||
		strings.HasPrefix(value, "<") ||
		strings.Contains(lower, "your_") ||
		strings.Contains(lower, "replace_me") ||
		value == `""` || value == "''"
}
