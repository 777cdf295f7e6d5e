package pathrecovery

import "strings"

// lastSegmentDuplicateSuffix strips a trailing ".LastSegment" duplicate
// suffix from a path's final segment — the common "Foo/Bar.Bar" idiom
// (spec.md §4.5).
func lastSegmentDuplicateSuffix(path string) string {
	slash := strings.LastIndexByte(path, '/')
	seg := path
	if slash >= 0 {
		seg = path[slash+1:]
	}
	dot := strings.IndexByte(seg, '.')
	if dot <= 0 || dot == len(seg)-1 {
		return path
	}
	prefix, suffix := seg[:dot], seg[dot+1:]
	if prefix != suffix {
		return path
	}
	trimmed := seg[:dot]
	if slash >= 0 {
		return path[:slash+1] + trimmed
	}
	return trimmed
}

// collapseLeadingDoubleSlash collapses a leading "//" to a single "/".
func collapseLeadingDoubleSlash(path string) string {
	for strings.HasPrefix(path, "//") {
		path = path[1:]
	}
	return path
}

func normalizeCandidate(path string) string {
	return collapseLeadingDoubleSlash(lastSegmentDuplicateSuffix(normalizeSeparators(path)))
}

// scoreHeaderCandidate implements the §4.5 candidate scoring formula for
// the header strategy.
func scoreHeaderCandidate(path, stem string, class Class) int {
	score := 0
	if lastSegmentEqualsStem(path, stem) {
		score += 5
	}
	if strings.HasPrefix(path, "/") {
		score += 3
	}
	lower := strings.ToLower(path)
	if strings.Contains(lower, "/game/") || strings.Contains(lower, "/engine/") {
		score += 2
	}
	if containsClassToken(path, class) {
		score += 2
	}
	score += min(10, strings.Count(path, "/"))
	score += min(10, len(path))
	return score
}

// scoreContentCandidate implements the §4.5 (5b) candidate scoring
// formula: 10*(ends with '/'+stem) + slash-count.
func scoreContentCandidate(path, stem string) int {
	score := 0
	if strings.HasSuffix(strings.ToLower(path), "/"+strings.ToLower(stem)) {
		score += 10
	}
	score += strings.Count(path, "/")
	return score
}

func lastSegmentEqualsStem(path, stem string) bool {
	slash := strings.LastIndexByte(path, '/')
	seg := path
	if slash >= 0 {
		seg = path[slash+1:]
	}
	return strings.EqualFold(seg, stem)
}
