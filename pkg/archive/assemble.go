package archive

// Decompressor is the subset of pkg/codec.Decoder the assembler needs,
// narrowed so tests can substitute a stub instead of the real Oodle FFI.
type Decompressor interface {
	Decompress(comp []byte, uncompressedLen int) ([]byte, error)
}

// ContainerSource is the subset of ContainerReader the assembler needs.
type ContainerSource interface {
	Read(path string, offset uint64, length int) ([]byte, error)
}

// Assemble gathers block's base and extra chunks into one decompressed
// window, clamped to needed bytes, per spec.md §4.4 (C4). It is the sole
// place that decides "store" (compressed size equals uncompressed size)
// versus "decompress".
func Assemble(container ContainerSource, dec Decompressor, block *BlockDescriptor, chunks []Chunk, needed int64) ([]byte, error) {
	if needed <= 0 {
		return []byte{}, nil
	}
	out := make([]byte, needed)
	cursor := int64(0)

	for _, chunk := range chunks {
		if cursor >= needed {
			break
		}
		if chunk.UncompressedSize < 0 || chunk.CompressedSize < 0 {
			return nil, newError(KindEntryOutOfRange, "negative chunk size (comp %d, unc %d)", chunk.CompressedSize, chunk.UncompressedSize)
		}

		compressed, err := container.Read(block.ContainerPath, chunk.CompressedOffset, int(chunk.CompressedSize))
		if err != nil {
			return nil, err
		}

		var decompressed []byte
		if chunk.CompressedSize == chunk.UncompressedSize {
			// Store mode: copied verbatim, no codec call.
			decompressed = compressed
		} else {
			decompressed, err = dec.Decompress(compressed, int(chunk.UncompressedSize))
			if err != nil {
				return nil, err
			}
		}

		remaining := needed - cursor
		part := decompressed
		if int64(len(part)) > remaining {
			// The last contributing part is clipped so the window never
			// overflows `needed` (spec.md §4.4).
			part = part[:remaining]
		}
		copy(out[cursor:], part)
		cursor += int64(len(part))
	}

	return out, nil
}

// ExtractPayload carves the ExtractedPayload for an entry out of an
// assembled decompressed window, honoring spec.md invariant 4:
// abs_offset + abs_size must not exceed the window length after clamping.
func ExtractPayload(window []byte, absOffset, absSize int32) ([]byte, error) {
	if absSize <= 0 {
		return []byte{}, nil
	}
	if absOffset < 0 {
		return nil, newError(KindEntryOutOfRange, "negative abs_offset %d", absOffset)
	}
	end := int64(absOffset) + int64(absSize)
	if end > int64(len(window)) {
		return nil, newError(KindEntryOutOfRange, "abs_offset+abs_size %d exceeds assembled window length %d", end, len(window))
	}
	return window[absOffset:end], nil
}

// NeededLength computes min(totalUncompressedSum, abs_offset+abs_size), the
// bound the assembler must clamp its output buffer to (spec.md §4.3
// "Required length").
func NeededLength(totalUncompressedSum int64, absOffset, absSize int32) int64 {
	want := int64(absOffset) + int64(absSize)
	if want < 0 {
		want = 0
	}
	if totalUncompressedSum < want {
		return totalUncompressedSum
	}
	return want
}
