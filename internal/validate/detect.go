package validate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// manifestFiles lists the recognized project manifests, checked in order.
var manifestFiles = []string{
	"go.mod",
	"package.json",
	"pyproject.toml",
	"Cargo.toml",
	"Makefile",
}

// sourceExtensions lists file extensions counted as source files.
var sourceExtensions = map[string]bool{
	".go":   true,
	".js":   true,
	".jsx":  true,
	".ts":   true,
	".tsx":  true,
	".py":   true,
	".rs":   true,
	".java": true,
	".c":    true,
	".h":    true,
	".cpp":  true,
	".rb":   true,
}

// skipDirs are directories excluded from the source-file walk.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"dist":         true,
	"__pycache__":  true,
}

// DetectManifest returns the first recognized project manifest present in
// dir, or false when none is found.
func DetectManifest(dir string) (string, bool) {
	for _, name := range manifestFiles {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			return name, true
		}
	}
	return "", false
}

// CountSourceFiles walks dir and counts files with a recognized source
// extension, skipping hidden directories and common build output.
func CountSourceFiles(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != dir && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if sourceExtensions[filepath.Ext(d.Name())] {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
