package tools

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideWorkDir is returned by ResolveUnder when a path would land outside
// the work directory.
var ErrOutsideWorkDir = errors.New("path escapes the work directory")

// ExpandHome replaces a leading "~/" or a bare "~" with the user's home directory.
// Returns path unchanged if it does not start with "~".
//
// Expectations:
//   - Expands "~/foo" to "<home>/foo"
//   - Expands bare "~" to "<home>"
//   - Returns path unchanged when it does not start with "~"
//   - Returns path unchanged for "/absolute/path"
func ExpandHome(path string) string {
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// WorkDir resolves dir to an absolute directory. "~" is expanded; an empty
// dir means the current directory.
func WorkDir(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	return filepath.Abs(ExpandHome(dir))
}

// ResolveUnder joins rel onto root and verifies the result stays inside root.
// rel is always treated as relative, even with a leading "/".
//
// Expectations:
//   - Joins a bare filename onto root
//   - Keeps nested relative directories ("docs/api.md")
//   - Treats a leading "/" as relative to root
//   - Returns ErrOutsideWorkDir when rel climbs out of root via ".."
//   - Returns ErrOutsideWorkDir when rel resolves to root itself
func ResolveUnder(root, rel string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	path := filepath.Join(absRoot, rel)
	r, err := filepath.Rel(absRoot, path)
	if err != nil {
		return "", err
	}
	if r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", ErrOutsideWorkDir
	}
	return path, nil
}
