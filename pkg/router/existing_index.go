package router

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// ExistingIndex is the C7 pre-scan: a case-insensitive snapshot of an
// output tree's relative paths and basenames, used only for skip
// decisions, never for overwriting (spec.md §4.7).
type ExistingIndex struct {
	paths     map[string]struct{}
	basenames map[string]struct{}
}

// BuildExistingIndex walks root and records every regular file found. It is
// not an error for root to not yet exist; the index is then empty.
func BuildExistingIndex(root string) (*ExistingIndex, error) {
	idx := &ExistingIndex{
		paths:     make(map[string]struct{}),
		basenames: make(map[string]struct{}),
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		idx.paths[strings.ToLower(filepath.ToSlash(rel))] = struct{}{}
		idx.basenames[strings.ToLower(filepath.Base(path))] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// HasBasename reports whether any indexed file shares this basename,
// case-insensitively.
func (idx *ExistingIndex) HasBasename(name string) bool {
	_, ok := idx.basenames[strings.ToLower(name)]
	return ok
}

// HasPath reports whether rel (forward-slash, relative to the output root)
// was present in the pre-scan.
func (idx *ExistingIndex) HasPath(rel string) bool {
	_, ok := idx.paths[strings.ToLower(filepath.ToSlash(rel))]
	return ok
}
