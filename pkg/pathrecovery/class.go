package pathrecovery

import "strings"

// Class is the coarse asset category spec.md §4.5 derives from an asset's
// name-table strings, used both to weight path-candidate scoring and by
// the router (C6) to detect materials for satellite-file homing.
type Class int

const (
	ClassUnknown Class = iota
	ClassMaterial
	ClassMesh
)

var materialTokens = []string{"materialexpression", "texture2d", "shader", "material"}
var meshTokens = []string{"agggeom", "staticmesh", "skeletalmesh"}

// classify performs the token-based, case-folded scan over every collected
// name-table string described in spec.md §4.5.
func classify(names []string) Class {
	for _, n := range names {
		lower := strings.ToLower(n)
		for _, tok := range materialTokens {
			if strings.Contains(lower, tok) {
				return ClassMaterial
			}
		}
	}
	for _, n := range names {
		lower := strings.ToLower(n)
		for _, tok := range meshTokens {
			if strings.Contains(lower, tok) {
				return ClassMesh
			}
		}
	}
	return ClassUnknown
}

// containsClassToken reports whether path contains a token associated with
// class, the "class-appropriate substring" term in the §4.5 scoring
// formula.
func containsClassToken(path string, class Class) bool {
	lower := strings.ToLower(path)
	var tokens []string
	switch class {
	case ClassMaterial:
		tokens = materialTokens
	case ClassMesh:
		tokens = meshTokens
	default:
		return false
	}
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}
