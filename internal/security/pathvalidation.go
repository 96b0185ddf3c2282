// Package security validates user supplied file paths and names.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// canonicalPath makes p absolute and resolves symlinks in its longest
// existing prefix. A file that does not exist yet is placed under the
// resolved form of its nearest existing parent, so a link such as
// exports/evil -> /etc cannot smuggle a new file out of the directory.
func canonicalPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	var missing []string
	for dir := abs; ; {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		missing = append(missing, filepath.Base(dir))
		dir = parent
	}
}

// ValidatePathWithinDirectory returns an error unless filePath, once
// cleaned and with symlinks resolved, lies inside safeDir. safeDir must
// exist.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	target, err := canonicalPath(filepath.Clean(filePath))
	if err != nil {
		return err
	}
	absDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}
	dir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", filePath, safeDir)
	}
	return nil
}

// ValidatePathWithinAllowedDirs accepts filePath if it lies inside any of
// allowedDirs.
func ValidatePathWithinAllowedDirs(filePath string, allowedDirs []string) error {
	if len(allowedDirs) == 0 {
		return fmt.Errorf("no allowed directories specified")
	}
	for _, dir := range allowedDirs {
		if ValidatePathWithinDirectory(filePath, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("path must be within one of the allowed directories: %v", allowedDirs)
}

// ValidateExportPath validates a file path for session export and import.
// The path must be inside exportDir or the temp directory.
func ValidateExportPath(filePath, exportDir string) error {
	return ValidatePathWithinAllowedDirs(filePath, []string{exportDir, os.TempDir()})
}

// ResolveExportPath maps a user supplied path onto the export directory.
// Relative paths are taken relative to exportDir and a path without an
// extension gets ext appended. The result is validated with
// ValidateExportPath.
func ResolveExportPath(name, exportDir, ext string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("path is required")
	}
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(exportDir, p)
	}
	if ext != "" && filepath.Ext(p) == "" {
		p += ext
	}
	if err := ValidateExportPath(p, exportDir); err != nil {
		return "", err
	}
	return filepath.Clean(p), nil
}

// maxFilenameLen bounds names produced by SanitizeFilename.
const maxFilenameLen = 128

// SanitizeFilename turns an identifier such as a session id or MAC address
// into a file name: runs of characters other than ASCII letters, digits,
// dot, underscore and dash become one underscore, and leading or trailing
// dots and underscores are dropped.
func SanitizeFilename(s string) string {
	var b strings.Builder
	pendingUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		ok := r < 0x80 && (r == '.' || r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
		if !ok {
			if !pendingUnderscore {
				b.WriteByte('_')
				pendingUnderscore = true
			}
			continue
		}
		b.WriteRune(r)
		pendingUnderscore = false
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
