package toolexec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrSecurityViolation marks a path that escapes the project root after
// canonicalization. The bridge trusts this boundary absolutely, so the
// check runs on every filesystem-touching call.
var ErrSecurityViolation = errors.New("security violation: path escapes project root")

// resolveWithin joins path (relative or absolute) against root and returns
// the resolved target, guaranteeing it stays inside the canonicalized
// root. Symlinked ancestors are resolved before the containment check so a
// link cannot smuggle the target outside. The deepest nonexistent suffix
// is kept verbatim, which lets write targets pass through while their
// parent is still validated.
func resolveWithin(root, path string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("project root is required")
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve project root: %w", err)
	}
	canonRoot, err := filepath.EvalSymlinks(rootAbs)
	if err != nil {
		return "", fmt.Errorf("project root not accessible: %w", err)
	}

	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(canonRoot, target)
	}
	target = filepath.Clean(target)

	resolved, err := canonicalizeExisting(target)
	if err != nil {
		return "", err
	}

	if resolved != canonRoot && !strings.HasPrefix(resolved, canonRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrSecurityViolation, path)
	}
	return resolved, nil
}

// canonicalizeExisting resolves symlinks on the deepest existing ancestor
// of p and reattaches the nonexistent remainder.
func canonicalizeExisting(p string) (string, error) {
	existing := p
	var suffix []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("stat %s: %w", existing, err)
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		suffix = append([]string{filepath.Base(existing)}, suffix...)
		existing = parent
	}

	canon, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", fmt.Errorf("canonicalize %s: %w", existing, err)
	}
	if len(suffix) == 0 {
		return canon, nil
	}
	return filepath.Join(append([]string{canon}, suffix...)...), nil
}
