package router

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// trailingIndexSuffix matches the index-like suffixes the bulk reconcile
// pass strips from a staged file's stem while hunting for an owning asset,
// e.g. "_1", "-lod2", ".3" (spec.md §4.8).
var trailingIndexSuffix = regexp.MustCompile(`(?i)([_\-.](lod)?\d+)$`)

const maxSuffixStrips = 3
const stagingDirName = "_ubulks"

// Reconcile implements C8: it re-scans the output tree for material
// assets, extends the material-directory memo with anything discovered on
// disk but never memoized during the run, then walks the staging directory
// moving each orphaned bulk file next to the asset it belongs to. logf
// receives one line per rescued file; it may be nil.
func (r *Router) Reconcile(logf func(string)) error {
	root := r.cfg.OutputDirectory
	allMemo := make(map[string]string)

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
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".uasset" && ext != ".uasset2" {
			return nil
		}
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		dir := filepath.Dir(path)
		// Memo entries are relative to root, matching what Route memoizes.
		relDir := filepath.ToSlash(relPathRelativeTo(root, dir))
		allMemo[strings.ToLower(stem)] = relDir

		if _, memoized := r.MaterialDir(stem); !memoized {
			if isMaterialStem(stem) || isMaterialPath(filepath.ToSlash(dir)) {
				r.MemoizeMaterialDir(stem, relDir)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	stagingDir := filepath.Join(root, stagingDirName)
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		dir, ok := r.findOwningDirectory(name, allMemo)
		if !ok {
			continue
		}

		src := filepath.Join(stagingDir, name)
		dest := r.resolveCollision(filepath.Join(root, filepath.FromSlash(dir), name))
		if err := os.Rename(src, dest); err != nil {
			if logf != nil {
				logf(fmt.Sprintf("⚠️ failed to rescue %s: %v", name, err))
			}
			continue
		}
		if logf != nil {
			logf(fmt.Sprintf("🗃️ rescued %s -> %s", name, dest))
		}
	}

	remaining, err := os.ReadDir(stagingDir)
	if err == nil && len(remaining) == 0 {
		_ = os.Remove(stagingDir)
	}
	return nil
}

// findOwningDirectory tries a staged file's bare stem, then up to three
// rounds of stripping a trailing index-like suffix, first against the
// material memo, then against allMemo.
func (r *Router) findOwningDirectory(name string, allMemo map[string]string) (string, bool) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidates := make([]string, 0, maxSuffixStrips+1)
	candidates = append(candidates, stem)
	cur := stem
	for i := 0; i < maxSuffixStrips; i++ {
		stripped := trailingIndexSuffix.ReplaceAllString(cur, "")
		if stripped == cur {
			break
		}
		candidates = append(candidates, stripped)
		cur = stripped
	}

	for _, c := range candidates {
		if dir, ok := r.MaterialDir(c); ok {
			return dir, true
		}
	}
	for _, c := range candidates {
		if dir, ok := allMemo[strings.ToLower(c)]; ok {
			return dir, true
		}
	}
	return "", false
}
