// Package fileutil provides file system helpers shared by the script loader.
package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ScriptExtensions lists the file extensions treated as FSL scripts.
var ScriptExtensions = []string{".fsl", ".txt"}

// IsScriptFile reports whether name has a script extension, ignoring case.
func IsScriptFile(name string) bool {
	ext := filepath.Ext(name)
	for _, want := range ScriptExtensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// FindFileCaseInsensitive searches dir on the real file system for an entry
// whose name matches filename ignoring case.
//
// Example:
//
//	path, err := FindFileCaseInsensitive("/scripts", "MAIN.FSL")
//	// finds "main.fsl", "Main.fsl", etc.
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	if name, ok := matchEntry(entries, filename); ok {
		return filepath.Join(dir, name), nil
	}
	return "", fmt.Errorf("file not found: %s (searched in %s): %w", filename, dir, fs.ErrNotExist)
}

// FindFileCaseInsensitiveFS is FindFileCaseInsensitive for an fs.FS.
// Returned paths use forward slashes.
func FindFileCaseInsensitiveFS(fsys fs.FS, dir, filename string) (string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	if name, ok := matchEntry(entries, filename); ok {
		return path.Join(dir, name), nil
	}
	return "", fmt.Errorf("file not found: %s (searched in %s): %w", filename, dir, fs.ErrNotExist)
}

// matchEntry returns the name of the first entry equal to filename ignoring
// case. Directories match too, so paths to script directories resolve.
func matchEntry(entries []fs.DirEntry, filename string) (string, bool) {
	for _, entry := range entries {
		if strings.EqualFold(entry.Name(), filename) {
			return entry.Name(), true
		}
	}
	return "", false
}
