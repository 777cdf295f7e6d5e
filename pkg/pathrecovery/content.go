package pathrecovery

import "strings"

// maxContentCandidateLen bounds how far a content-scan candidate can
// extend from a separator before recovery gives up on it (spec.md §4.5).
const maxContentCandidateLen = 512

// minContentCandidateSeparators is the minimum slash count a content-scan
// candidate must contain to be considered.
const minContentCandidateSeparators = 2

// recoverFromContent implements the 5b byte-scan fallback: find runs that
// look like paths directly in the decompressed bytes, used only when the
// header strategy yields nothing.
func recoverFromContent(data []byte, stem string) (string, bool) {
	best := ""
	bestScore := -1

	for i := 0; i < len(data); i++ {
		if data[i] != '/' && data[i] != '\\' {
			continue
		}
		end := i
		for end < len(data) && end-i < maxContentCandidateLen && isCandidateByte(data[end]) {
			end++
		}
		raw := string(data[i:end])
		if strings.Count(raw, "/")+strings.Count(raw, "\\") < minContentCandidateSeparators {
			continue
		}
		candidate := normalizeCandidate(raw)
		score := scoreContentCandidate(candidate, stem)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}

	if best == "" {
		return "", false
	}
	return best, true
}

// isCandidateByte reports whether b can extend a content-scan candidate:
// printable, not a quote, not whitespace.
func isCandidateByte(b byte) bool {
	if b < 0x20 || b == 0x7f {
		return false
	}
	if b == '"' || b == '\'' {
		return false
	}
	if b == ' ' {
		return false
	}
	return true
}
