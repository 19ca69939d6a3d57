package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/desertthunder/proofs/internal/shared"
	"github.com/gabriel-vasile/mimetype"
)

// CollectFiles resolves command line paths into upload candidates.
//
// Directories are walked (not recursively) and only image files are kept from
// them; files named explicitly are always kept. Duplicate paths are dropped and
// the order of explicit arguments is preserved.
func CollectFiles(paths []string) ([]LocalFile, error) {
	seen := map[string]bool{}
	var files []LocalFile

	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if seen[abs] {
			return nil
		}
		f, err := NewLocalFile(path)
		if err != nil {
			return err
		}
		seen[abs] = true
		files = append(files, f)
		return nil
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}

		if !info.IsDir() {
			if err := add(p); err != nil {
				return nil, err
			}
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", p, err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			full := filepath.Join(p, name)
			if !IsImage(full) {
				continue
			}
			if err := add(full); err != nil {
				return nil, err
			}
		}
	}

	if len(files) == 0 {
		return nil, shared.ErrNoFiles
	}
	return files, nil
}

// IsImage sniffs the file content for an image MIME type.
func IsImage(path string) bool {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return false
	}
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}

// HasExtension reports whether path ends in one of exts, case-insensitively.
// An empty list accepts everything.
func HasExtension(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
