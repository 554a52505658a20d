// Package security validates buffer and draft paths against the
// directories a language server session is allowed to touch.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// GetCleanAbsPath resolves path to its cleaned, absolute form.
func GetCleanAbsPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

// IsWithinAllowedDirectory reports whether path resolves to a location at
// or below baseDir. Comparison is case-sensitive and purely lexical on the
// cleaned, absolute forms of both inputs — it does not consult the
// filesystem, so it treats "does not exist yet" paths under baseDir as
// allowed.
func IsWithinAllowedDirectory(path, baseDir string) bool {
	cleanPath, err := GetCleanAbsPath(path)
	if err != nil {
		return false
	}
	cleanBase, err := GetCleanAbsPath(baseDir)
	if err != nil {
		return false
	}

	if cleanPath == cleanBase {
		return true
	}
	return strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator))
}
