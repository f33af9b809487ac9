// Package fileutils resolves data-source paths: plain files, folders, and
// glob patterns (including recursive ** globs).
package fileutils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileExists checks if a file exists and is not a directory.
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirectoryExists checks if a directory exists.
func DirectoryExists(dirPath string) bool {
	info, err := os.Stat(dirPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// EnsureDirectoryExists creates a directory if it doesn't exist.
func EnsureDirectoryExists(dirPath string) error {
	if !DirectoryExists(dirPath) {
		if err := os.MkdirAll(dirPath, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return nil
}

// ResolveSourcePath expands a data-source path spec into concrete file
// paths, sorted for deterministic processing order:
//
//	data/card.csv        a single file
//	data/exports/        every *.csv directly in the folder
//	data/exports/*.csv   a glob
//	data/**/*.csv        a recursive glob
//
// A spec that resolves to nothing is an error; the caller decides whether
// that aborts the run.
func ResolveSourcePath(spec string) ([]string, error) {
	switch {
	case strings.Contains(spec, "**"):
		return resolveRecursiveGlob(spec)
	case strings.ContainsAny(spec, "*?["):
		matches, err := filepath.Glob(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", spec, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("glob %q matched no files", spec)
		}
		sort.Strings(matches)
		return matches, nil
	case DirectoryExists(spec):
		matches, err := filepath.Glob(filepath.Join(spec, "*.csv"))
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("folder %q contains no *.csv files", spec)
		}
		sort.Strings(matches)
		return matches, nil
	case FileExists(spec):
		return []string{spec}, nil
	}
	return nil, fmt.Errorf("source path %q not found", spec)
}

// resolveRecursiveGlob handles ** patterns by walking from the fixed prefix
// and matching the remainder against each file's relative path.
func resolveRecursiveGlob(spec string) ([]string, error) {
	prefix, rest, _ := strings.Cut(spec, "**")
	root := filepath.Dir(prefix + ".")
	if root == "" {
		root = "."
	}
	suffix := strings.TrimPrefix(rest, "/")

	var matches []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if suffix == "" {
			matches = append(matches, path)
			return nil
		}
		ok, matchErr := filepath.Match(suffix, filepath.Base(path))
		if matchErr != nil {
			return matchErr
		}
		if ok {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %q: %w", spec, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("glob %q matched no files", spec)
	}
	sort.Strings(matches)
	return matches, nil
}
