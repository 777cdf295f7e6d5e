package pathrecovery

import (
	"fmt"
	"strings"
)

const legacyVersionMarker = -4

// customVersionSentinelA and customVersionSentinelB are the (version1,
// version2) pair that signals a custom-version block follows, and also
// widens the later skip rules by one extra 4-byte field (spec.md §4.5).
const (
	customVersionSentinelA = 502
	customVersionSentinelB = 67
)

// gatherableTextEngineVersionThreshold is the engine-version cutoff above
// which the header carries a localization-id string and 8 bytes of
// gatherable-text metadata that must be skipped.
const gatherableTextEngineVersionThreshold = 459

// headerResult is what parseAssetHeader extracts: the name-table strings,
// used by both classification and candidate scoring.
type headerResult struct {
	names []string
}

// parseAssetHeader walks the asset header structure described in spec.md
// §4.5 (5a) purely to reach and read the name table; every other header
// field only exists here to be skipped correctly. Returns an error if the
// header is too short or self-inconsistent — callers treat that as "header
// strategy found nothing" and fall through to content recovery or the
// logical name.
func parseAssetHeader(data []byte) (headerResult, error) {
	c := newCursor(data)

	if _, err := c.readInt32(); err != nil { // tag
		return headerResult{}, err
	}
	version, err := c.readInt32()
	if err != nil {
		return headerResult{}, err
	}
	var engineVersion int32
	if version < 0 && version != legacyVersionMarker {
		engineVersion, err = c.readInt32()
		if err != nil {
			return headerResult{}, err
		}
	}

	v1, err := c.readInt32()
	if err != nil {
		return headerResult{}, err
	}
	v2, err := c.readInt32()
	if err != nil {
		return headerResult{}, err
	}
	hasCustomVersionSentinel := v1 == customVersionSentinelA && v2 == customVersionSentinelB

	if hasCustomVersionSentinel {
		count, err := c.readInt32()
		if err != nil {
			return headerResult{}, err
		}
		if count < 0 || count > 1<<16 {
			return headerResult{}, errCorruptHeader("implausible custom version count %d", count)
		}
		if err := c.skip(int(count) * 5 * 4); err != nil {
			return headerResult{}, err
		}
	}

	if _, err := c.readInt32(); err != nil { // total header size
		return headerResult{}, err
	}
	if _, err := c.readLengthPrefixedString(); err != nil { // folderName
		return headerResult{}, err
	}
	if _, err := c.readUint32(); err != nil { // package flags
		return headerResult{}, err
	}

	a, err := c.readInt32()
	if err != nil {
		return headerResult{}, err
	}
	b, err := c.readInt32()
	if err != nil {
		return headerResult{}, err
	}
	var nameCount, nameOffset int32
	if a > 0 && b > 0 {
		nameCount, nameOffset = a, b
	} else {
		nameOffset, nameCount = a, b
	}

	if engineVersion > gatherableTextEngineVersionThreshold {
		if _, err := c.readLengthPrefixedString(); err != nil { // localization id
			return headerResult{}, err
		}
		if err := c.skip(8); err != nil { // gatherable-text metadata
			return headerResult{}, err
		}
		if hasCustomVersionSentinel {
			if err := c.skip(4); err != nil {
				return headerResult{}, err
			}
		}
	}

	if nameCount < 0 || nameCount > 1<<20 {
		return headerResult{}, errCorruptHeader("implausible name count %d", nameCount)
	}
	if err := c.seek(int(nameOffset)); err != nil {
		return headerResult{}, err
	}

	names := make([]string, 0, nameCount)
	for i := int32(0); i < nameCount; i++ {
		name, err := c.readLengthPrefixedString()
		if err != nil {
			return headerResult{}, err
		}
		if err := c.skip(4); err != nil { // auxiliary data
			return headerResult{}, err
		}
		names = append(names, name)
	}

	return headerResult{names: names}, nil
}

func errCorruptHeader(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// pathLike reports whether s looks like a hierarchical asset path: it
// contains a '/' once backslashes are normalized to forward slashes
// (spec.md §4.5 name-table scan filter).
func pathLike(s string) bool {
	return strings.Contains(normalizeSeparators(s), "/")
}

func normalizeSeparators(s string) string {
	return strings.ReplaceAll(s, "\\", "/")
}
