// Package router implements spec.md's C6: per-entry filtering and output
// location decisions, plus the material-directory memo that lets later
// satellite files discover an asset written earlier in the same run.
package router

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/user/b2extract/pkg/pathrecovery"
)

// Config mirrors the driver-input toggles from spec.md §6.2 that affect
// routing decisions.
type Config struct {
	OutputDirectory   string
	SkipWemFiles      bool
	SkipBinkFiles     bool
	SkipExistingFiles bool
	SkipResAndAce     bool
	SkipConfigFiles   bool
	OnlyAssets        bool
}

// Entry is the per-entry information the router needs to reach a decision.
// Basename is the final "name.ext" the entry would be written as; Ext is
// that extension, lowercased and including the leading dot. SuggestedDir is
// the sanitized directory recovery produced (empty if recovery found
// nothing). ContainerName is the companion container's filename, checked
// alongside SuggestedDir for localization tokens.
type Entry struct {
	Basename      string
	Ext           string
	Stem          string
	SuggestedDir  string
	ContainerName string
	RecoveryClass pathrecovery.Class
}

// Decision is the router's verdict for one entry.
type Decision struct {
	Skip         bool
	SkipReason   string
	AbsolutePath string
	RelativePath string
}

var configExtensions = map[string]struct{}{
	".ini": {}, ".json": {}, ".cfg": {}, ".xml": {}, ".toml": {},
	".yaml": {}, ".yml": {}, ".properties": {}, ".conf": {},
}

var ubulkFamily = regexp.MustCompile(`^\.ubulk\d*$`)

var wwiseSegments = map[string]struct{}{
	"wwiseaudio": {}, "wwisetriton": {},
}

var localizationTokens = map[string]struct{}{
	"localized": {}, "unlocalized": {}, "localisation": {}, "localization": {}, "loc": {},
}

// languageSegments is the fixed list of two-letter language codes and
// five-character language-region codes the localization skip rule also
// matches against as a bare path segment.
var languageSegments = map[string]struct{}{
	"en": {}, "fr": {}, "de": {}, "es": {}, "it": {}, "pt": {}, "ru": {},
	"pl": {}, "ja": {}, "ko": {}, "zh": {}, "cs": {}, "hu": {}, "tr": {},
	"ar": {}, "th": {}, "nl": {}, "sv": {}, "da": {}, "fi": {}, "no": {},
	"en-us": {}, "en-gb": {}, "es-mx": {}, "pt-br": {}, "zh-cn": {}, "zh-tw": {},
}

func isAssetFamily(ext string) bool {
	switch ext {
	case ".uasset", ".uasset2", ".umap", ".ubulk":
		return true
	}
	return ubulkFamily.MatchString(ext)
}

func isConfigExt(ext string) bool {
	_, ok := configExtensions[ext]
	return ok
}

func isBulkExt(ext string) bool {
	return ext == ".ubulk" || (ubulkFamily.MatchString(ext) && ext != ".ubulk")
}

func containsSegment(path string, tokens map[string]struct{}) bool {
	path = strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
	for _, seg := range strings.Split(path, "/") {
		if _, ok := tokens[seg]; ok {
			return true
		}
	}
	return false
}

func containsLocalizationToken(paths ...string) bool {
	for _, p := range paths {
		if containsSegment(p, localizationTokens) || containsSegment(p, languageSegments) {
			return true
		}
	}
	return false
}

// isMaterialStem reports whether stem's upper-cased form starts with one of
// the recognized material name prefixes (spec.md §4.6 material-detection
// rule).
func isMaterialStem(stem string) bool {
	upper := strings.ToUpper(stem)
	for _, prefix := range []string{"M_", "MI_", "MIC_", "MF_"} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

func isMaterialPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "/material") || strings.HasPrefix(lower, "material")
}

// Router holds the run-scoped state spec.md §9 calls out as must-be-reset
// per run: the material-directory memo and the used-relative-paths set.
// Both are owned by the driver and passed in fresh at the start of a run.
type Router struct {
	cfg          Config
	existing     *ExistingIndex
	materialMemo map[string]string
	usedPaths    map[string]struct{}
}

// New builds a Router with fresh run-scoped state. existing may be nil when
// skipExistingFiles is off.
func New(cfg Config, existing *ExistingIndex) *Router {
	return &Router{
		cfg:          cfg,
		existing:     existing,
		materialMemo: make(map[string]string),
		usedPaths:    make(map[string]struct{}),
	}
}

// MemoizeMaterialDir records dir as the output location for stem's material
// asset, keyed case-insensitively. Exported so the bulk reconcile pass (C8)
// can seed it from assets discovered on disk.
func (r *Router) MemoizeMaterialDir(stem, dir string) {
	r.materialMemo[strings.ToLower(stem)] = dir
}

// MaterialDir looks up a memoized material directory by stem.
func (r *Router) MaterialDir(stem string) (string, bool) {
	dir, ok := r.materialMemo[strings.ToLower(stem)]
	return dir, ok
}

// PreFilter applies the §4.6 rules that need only an entry's extension and
// logical name (rules 1-4), before the driver spends I/O parsing the entry
// row and assembling its payload. logicalDir is the directory portion of
// the entry's logical name, used as a stand-in for the recovered suggested
// directory since recovery hasn't run yet. It never mutates router state.
func (r *Router) PreFilter(basename, ext, logicalDir, containerName string) (skip bool, reason string) {
	ext = strings.ToLower(ext)

	if r.cfg.OnlyAssets && !isAssetFamily(ext) {
		return true, "Only Assets Mode"
	}
	if r.cfg.SkipResAndAce && (ext == ".res" || ext == ".ace") {
		return true, "res/ace file"
	}
	if r.cfg.SkipConfigFiles && isConfigExt(ext) {
		return true, "config file"
	}
	if r.cfg.SkipBinkFiles && (ext == ".bik" || ext == ".bk2") {
		return true, "Bink video"
	}
	if r.cfg.SkipWemFiles && containsSegment(logicalDir, wwiseSegments) {
		return true, "Wwise audio folder"
	}
	if r.cfg.SkipExistingFiles && r.existing != nil && r.existing.HasBasename(basename) {
		return true, "already extracted"
	}
	if (r.cfg.OnlyAssets || r.cfg.SkipWemFiles) && containsLocalizationToken(containerName, logicalDir) {
		return true, "localization"
	}
	if ext == "" {
		return true, "no extension"
	}
	return false, ""
}

// Route applies the priority-ordered rules from spec.md §4.6 and, for
// entries that are not skipped, resolves filename collisions before
// returning the final absolute path.
func (r *Router) Route(e Entry) Decision {
	ext := strings.ToLower(e.Ext)

	// Rule 1: skip by filter.
	if r.cfg.OnlyAssets && !isAssetFamily(ext) {
		return Decision{Skip: true, SkipReason: "Only Assets Mode"}
	}
	if r.cfg.SkipResAndAce && (ext == ".res" || ext == ".ace") {
		return Decision{Skip: true, SkipReason: "res/ace file"}
	}
	if r.cfg.SkipConfigFiles && isConfigExt(ext) {
		return Decision{Skip: true, SkipReason: "config file"}
	}
	if r.cfg.SkipBinkFiles && (ext == ".bik" || ext == ".bk2") {
		return Decision{Skip: true, SkipReason: "Bink video"}
	}
	if r.cfg.SkipWemFiles && containsSegment(e.SuggestedDir, wwiseSegments) {
		return Decision{Skip: true, SkipReason: "Wwise audio folder"}
	}

	// Rule 2: skip by existing filename.
	if r.cfg.SkipExistingFiles && r.existing != nil && r.existing.HasBasename(e.Basename) {
		return Decision{Skip: true, SkipReason: "already extracted"}
	}

	// Rule 3: skip by localization.
	if (r.cfg.OnlyAssets || r.cfg.SkipWemFiles) && containsLocalizationToken(e.ContainerName, e.SuggestedDir) {
		return Decision{Skip: true, SkipReason: "localization"}
	}

	// Rule 4: no extension.
	if ext == "" {
		return Decision{Skip: true, SkipReason: "no extension"}
	}

	var relDir string

	switch {
	case isConfigExt(ext):
		// Rule 5: config extension.
		relDir = "Configs"

	case isBulkExt(ext):
		// Rule 6: bulk family.
		if dir, ok := r.MaterialDir(e.Stem); ok {
			relDir = dir
		} else {
			relDir = "_ubulks"
		}

	case ext == ".uasset" && r.isMaterial(e):
		// Rule 7: material .uasset.
		if e.SuggestedDir != "" {
			relDir = e.SuggestedDir
		} else {
			relDir = "Materials"
		}
		r.MemoizeMaterialDir(e.Stem, relDir)

	default:
		// Rule 8: anything else.
		if e.SuggestedDir != "" {
			relDir = e.SuggestedDir
		} else {
			relDir = "misc"
		}
	}

	relDir = containedRelDir(r.cfg.OutputDirectory, relDir)

	relPath := filepath.ToSlash(filepath.Join(relDir, e.Basename))
	absPath := r.resolveCollision(filepath.Join(r.cfg.OutputDirectory, filepath.FromSlash(relPath)))

	return Decision{
		AbsolutePath: absPath,
		RelativePath: filepath.ToSlash(relPathRelativeTo(r.cfg.OutputDirectory, absPath)),
	}
}

// containedRelDir guards spec.md §8's P3 containment invariant: a recovered
// or routed relative directory must never resolve outside outputDirectory.
// Sanitize already drops "." and ".." segments, so this only catches a
// directory that still escapes by some other means; it falls back to "misc"
// rather than writing outside the tree.
func containedRelDir(outputDirectory, relDir string) string {
	joined := filepath.Join(outputDirectory, filepath.FromSlash(relDir))
	rel, err := filepath.Rel(outputDirectory, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "misc"
	}
	return relDir
}

func (r *Router) isMaterial(e Entry) bool {
	if e.RecoveryClass == pathrecovery.ClassMaterial {
		return true
	}
	if isMaterialPath(e.SuggestedDir) {
		return true
	}
	return isMaterialStem(e.Stem)
}

// resolveCollision implements the §4.6 collision-resolution rule: append
// "_1", "_2", ... before the extension until a free name is found, checking
// both this run's used-paths set and the real filesystem.
func (r *Router) resolveCollision(path string) string {
	key := strings.ToLower(path)
	if _, used := r.usedPaths[key]; !used {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			r.usedPaths[key] = struct{}{}
			return path
		}
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := base + "_" + strconv.Itoa(n) + ext
		candidateKey := strings.ToLower(candidate)
		if _, used := r.usedPaths[candidateKey]; used {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			continue
		}
		r.usedPaths[candidateKey] = struct{}{}
		return candidate
	}
}

func relPathRelativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}
