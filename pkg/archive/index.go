package archive

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Index is an opened .b2index file: the header, and random-access helpers
// for everything else (entry table, block descriptors, archive specs, name
// table) that spec.md §4.3 (C3) describes as scattered at unknown offsets
// discovered relative to the header.
type Index struct {
	path         string
	dir          string // base directory for container resolution
	containerExt string

	file Reader
	size int64

	Header IndexHeader
}

// Reader is the random-access surface Index needs from its underlying
// file; satisfied by *os.File, narrowed so tests can substitute an
// in-memory fixture.
type Reader interface {
	ReadAt(p []byte, off int64) (int, error)
}

// Open parses the header of the .b2index file at path. containerExt is the
// extension appended to a resolved container name if it doesn't already
// carry one (spec.md §4.3 container resolution), e.g. ".b2container".
func Open(path, containerExt string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(KindIndexMalformed, "open index %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, newError(KindIndexMalformed, "stat index %s: %w", path, err)
	}

	idx := &Index{
		path:         path,
		dir:          filepath.Dir(path),
		containerExt: containerExt,
		file:         f,
		size:         info.Size(),
	}
	if err := idx.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return idx, nil
}

// Close releases the underlying index file, if Open opened one.
func (idx *Index) Close() error {
	if closer, ok := idx.file.(*os.File); ok {
		return closer.Close()
	}
	return nil
}

func (idx *Index) readHeader() error {
	if idx.size < minHeaderSize {
		return newError(KindIndexMalformed, "index file %s is only %d bytes, too small for a header", idx.path, idx.size)
	}
	entryTableOffset, err := idx.readUint32At(entryTableOffsetFieldOffset)
	if err != nil {
		return newError(KindIndexMalformed, "read entryTableOffset: %w", err)
	}
	entryCountHint, err := idx.readInt32At(entryCountHintFieldOffset)
	if err != nil {
		return newError(KindIndexMalformed, "read entry count hint: %w", err)
	}
	namesSectionOffset, err := idx.readUint32At(namesSectionOffsetFieldOffset)
	if err != nil {
		return newError(KindIndexMalformed, "read namesSectionOffset: %w", err)
	}
	nameCountHint, err := idx.readInt32At(nameCountHintFieldOffset)
	if err != nil {
		return newError(KindIndexMalformed, "read name count hint: %w", err)
	}

	if int64(entryTableOffset) < 0 || int64(entryTableOffset) >= idx.size {
		return newError(KindIndexMalformed, "entryTableOffset %d out of bounds (file size %d)", entryTableOffset, idx.size)
	}
	if int64(namesSectionOffset) < 0 || int64(namesSectionOffset) >= idx.size {
		return newError(KindIndexMalformed, "namesSectionOffset %d out of bounds (file size %d)", namesSectionOffset, idx.size)
	}

	idx.Header = IndexHeader{
		EntryTableOffset:   entryTableOffset,
		EntryCountHint:     entryCountHint,
		NamesSectionOffset: namesSectionOffset,
		NameCountHint:      nameCountHint,
	}
	return nil
}

// --- low-level scalar/string reads ---

func (idx *Index) readAt(off int64, buf []byte) error {
	if off < 0 || off+int64(len(buf)) > idx.size {
		return fmt.Errorf("read of %d bytes at offset %d exceeds file size %d", len(buf), off, idx.size)
	}
	_, err := idx.file.ReadAt(buf, off)
	return err
}

func (idx *Index) readUint32At(off int64) (uint32, error) {
	var buf [4]byte
	if err := idx.readAt(off, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (idx *Index) readInt32At(off int64) (int32, error) {
	v, err := idx.readUint32At(off)
	return int32(v), err
}

func (idx *Index) readUint64At(off int64) (uint64, error) {
	var buf [8]byte
	if err := idx.readAt(off, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// readStringAt reads a NUL-terminated UTF-8 string starting at off. Returns
// an error if no NUL terminator is found before the end of the file or
// within a generous bound, so a corrupt offset can't force an unbounded
// scan.
func (idx *Index) readStringAt(off int64) (string, error) {
	const maxStringScan = 1 << 16
	if off < 0 || off >= idx.size {
		return "", fmt.Errorf("string offset %d out of bounds (file size %d)", off, idx.size)
	}
	limit := idx.size - off
	if limit > maxStringScan {
		limit = maxStringScan
	}
	buf := make([]byte, limit)
	if _, err := idx.file.ReadAt(buf, off); err != nil {
		return "", fmt.Errorf("read string at %d: %w", off, err)
	}
	nul := strings.IndexByte(string(buf), 0)
	if nul < 0 {
		return "", fmt.Errorf("no NUL terminator found within %d bytes at offset %d", limit, off)
	}
	return string(buf[:nul]), nil
}

// --- entry table ---

// EntryRow reads the 16-byte EntryTableRow for entryIndex.
func (idx *Index) EntryRow(entryIndex int) (EntryTableRow, error) {
	off := int64(idx.Header.EntryTableOffset) + int64(entryIndex)*entryTableRowSize
	var buf [entryTableRowSize]byte
	if err := idx.readAt(off, buf[:]); err != nil {
		return EntryTableRow{}, newError(KindEntryOutOfRange, "entry %d row at %d: %w", entryIndex, off, err)
	}
	row := EntryTableRow{
		BlockOffset: int32(binary.LittleEndian.Uint32(buf[0:4])),
		_Reserved:   int32(binary.LittleEndian.Uint32(buf[4:8])),
		AbsOffset:   int32(binary.LittleEndian.Uint32(buf[8:12])),
		AbsSize:     int32(binary.LittleEndian.Uint32(buf[12:16])),
	}
	return row, nil
}

// ResolveBlock reads the BlockDescriptor for blockOffset: the owning
// container's resolved absolute path plus chunk layout (spec.md §4.3).
func (idx *Index) ResolveBlock(blockOffset int32) (*BlockDescriptor, error) {
	if blockOffset <= 0 || int64(blockOffset) >= idx.size {
		return nil, newError(KindEntryOutOfRange, "block_offset %d out of bounds (file size %d)", blockOffset, idx.size)
	}

	archiveSpecPtr, err := idx.readUint64At(int64(blockOffset))
	if err != nil {
		return nil, newError(KindEntryOutOfRange, "read archive spec pointer at %d: %w", blockOffset, err)
	}
	containerPath, err := idx.resolveContainerPath(archiveSpecPtr)
	if err != nil {
		return nil, err
	}

	chunkInfoOff := int64(blockOffset) + 16
	var buf [blockChunkInfoSize]byte
	if err := idx.readAt(chunkInfoOff, buf[:]); err != nil {
		return nil, newError(KindEntryOutOfRange, "read chunk layout at %d: %w", chunkInfoOff, err)
	}
	payloadOffset := binary.LittleEndian.Uint64(buf[0:8])
	containerID := int32(binary.LittleEndian.Uint32(buf[8:12]))
	sizeTableOffset := binary.LittleEndian.Uint64(buf[12:20])
	extraCountMinus1 := int32(binary.LittleEndian.Uint32(buf[20:24]))

	return &BlockDescriptor{
		ContainerPath:   containerPath,
		PayloadOffset:   payloadOffset,
		ContainerID:     containerID,
		SizeTableOffset: sizeTableOffset,
		ExtraChunkCount: extraCountMinus1 + 1,
	}, nil
}

func (idx *Index) resolveContainerPath(archiveSpecPtr uint64) (string, error) {
	nameOffsetPtr, err := idx.readUint32At(int64(archiveSpecPtr))
	if err != nil {
		return "", newError(KindEntryOutOfRange, "read archive spec name offset at %d: %w", archiveSpecPtr, err)
	}
	name, err := idx.readStringAt(int64(nameOffsetPtr))
	if err != nil {
		return "", newError(KindEntryOutOfRange, "read container name at %d: %w", nameOffsetPtr, err)
	}
	if name == "" {
		return "", newError(KindEntryOutOfRange, "empty container name resolved from archive spec at %d", archiveSpecPtr)
	}
	if !strings.HasSuffix(strings.ToLower(name), strings.ToLower(idx.containerExt)) {
		name += idx.containerExt
	}
	return filepath.Join(idx.dir, name), nil
}

// ChunkList reads the base chunk plus any extras for block, and the total
// uncompressed length they sum to (spec.md §3 ChunkList, §4.3 chunk layout
// read).
func (idx *Index) ChunkList(block *BlockDescriptor) ([]Chunk, int64, error) {
	if block.ExtraChunkCount < 0 {
		return nil, 0, newError(KindEntryOutOfRange, "negative extra chunk count %d", block.ExtraChunkCount)
	}
	var baseBuf [12]byte
	if err := idx.readAt(int64(block.SizeTableOffset), baseBuf[:]); err != nil {
		return nil, 0, newError(KindEntryOutOfRange, "read base chunk size table at %d: %w", block.SizeTableOffset, err)
	}
	baseUncompressed := binary.LittleEndian.Uint64(baseBuf[0:8])
	baseCompressed := int32(binary.LittleEndian.Uint32(baseBuf[8:12]))

	chunks := make([]Chunk, 0, block.ExtraChunkCount)
	chunks = append(chunks, Chunk{
		CompressedOffset: block.PayloadOffset,
		CompressedSize:   baseCompressed,
		UncompressedSize: int32(baseUncompressed),
	})
	total := int64(baseUncompressed)

	extraCount := block.ExtraChunkCount
	extraTableOff := int64(block.SizeTableOffset) + 12
	for i := int32(0); i < extraCount; i++ {
		var buf [12]byte
		off := extraTableOff + int64(i)*12
		if err := idx.readAt(off, buf[:]); err != nil {
			return nil, 0, newError(KindEntryOutOfRange, "read extra chunk %d at %d: %w", i, off, err)
		}
		unc := int32(binary.LittleEndian.Uint32(buf[0:4]))
		start := int32(binary.LittleEndian.Uint32(buf[4:8]))
		end := int32(binary.LittleEndian.Uint32(buf[8:12]))
		chunks = append(chunks, Chunk{
			CompressedOffset: block.PayloadOffset + uint64(start),
			CompressedSize:   end - start,
			UncompressedSize: unc,
		})
		total += int64(unc)
	}
	return chunks, total, nil
}

// --- name table ---

// WalkNames reads the quickbms-style name table starting at
// NamesSectionOffset, stopping at EOF or after maxConsecutiveBadNameRecords
// consecutive malformed records (spec.md §4.3).
func (idx *Index) WalkNames() ([]NameRecord, error) {
	var records []NameRecord
	badRun := 0
	off := int64(idx.Header.NamesSectionOffset)

	for off+nameRecordSize <= idx.size {
		var buf [nameRecordSize]byte
		if _, err := idx.file.ReadAt(buf[:], off); err != nil {
			break
		}
		nameOffset := binary.LittleEndian.Uint64(buf[0:8])
		fileNumber := int32(binary.LittleEndian.Uint32(buf[8:12]))
		child := int32(binary.LittleEndian.Uint32(buf[12:16]))
		off += nameRecordSize

		malformed := nameOffset == 0 || int64(nameOffset) >= idx.size
		var name string
		if !malformed {
			var err error
			name, err = idx.readStringAt(int64(nameOffset))
			if err != nil || name == "" {
				malformed = true
			}
		}
		if fileNumber < 0 {
			malformed = true
		}

		if malformed {
			badRun++
			if badRun > maxConsecutiveBadNameRecords {
				break
			}
			continue
		}
		badRun = 0
		records = append(records, NameRecord{
			NameOffset: nameOffset,
			FileNumber: fileNumber,
			Child:      child,
			Name:       name,
		})
	}
	return records, nil
}
