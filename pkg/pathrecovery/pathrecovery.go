// Package pathrecovery implements spec.md's C5: mining a canonical
// relative path for a decompressed asset out of its own bytes, using two
// independent, ordered heuristics (header-based, then content-scan).
package pathrecovery

// Result is what either recovery strategy returns: a bare path (no
// extension — the driver appends the entry's original extension) plus the
// asset class detected along the way, used by the router for material
// homing.
type Result struct {
	Path  string
	Class Class
}

// recoverableExtensions lists the entry extensions the router ever sends
// to recovery (spec.md §4.5: "applied only to files whose extension is
// .uasset, .uasset2, or .umap").
var recoverableExtensions = map[string]struct{}{
	".uasset":  {},
	".uasset2": {},
	".umap":    {},
}

// Recoverable reports whether ext is one of the extensions path recovery
// applies to.
func Recoverable(ext string) bool {
	_, ok := recoverableExtensions[normalizeExt(ext)]
	return ok
}

func normalizeExt(ext string) string {
	out := make([]byte, len(ext))
	for i := 0; i < len(ext); i++ {
		b := ext[i]
		if b >= 'A' && b <= 'Z' {
			b += 'a' - 'A'
		}
		out[i] = b
	}
	return string(out)
}

// Recover runs the header strategy and, if it yields nothing and
// enableContent is set, the content-scan fallback. stem is the entry's
// logical filename without extension, used for both strategies' scoring.
// It returns ok=false when neither strategy (or neither is enabled)
// produces a path — callers fall back to the entry's logical name
// (spec.md §7 NameAmbiguous).
func Recover(data []byte, stem string, enableHeader, enableContent bool) (Result, bool) {
	if enableHeader {
		if res, ok := recoverFromHeader(data, stem); ok {
			return res, true
		}
	}
	if enableContent {
		if path, ok := recoverFromContent(data, stem); ok {
			return Result{Path: path, Class: ClassUnknown}, true
		}
	}
	return Result{}, false
}

func recoverFromHeader(data []byte, stem string) (Result, bool) {
	header, err := parseAssetHeader(data)
	if err != nil {
		return Result{}, false
	}

	class := classify(header.names)

	best := ""
	bestScore := -1
	for _, raw := range header.names {
		if !pathLike(raw) {
			continue
		}
		candidate := normalizeCandidate(raw)
		score := scoreHeaderCandidate(candidate, stem, class)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}

	if best == "" {
		return Result{}, false
	}
	return Result{Path: best, Class: class}, true
}
