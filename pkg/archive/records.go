// Package archive parses the two-file index/container archive format: an
// index file (.b2index) describing logical entries, paired with one or more
// container files (.b2container) holding compressed payload bytes. It
// implements spec.md §3 (data model), C2 (container reader), C3 (index
// parser) and C4 (chunk assembler).
package archive

const (
	// Header field offsets, little-endian (spec.md §6.1).
	entryTableOffsetFieldOffset = 68
	entryCountHintFieldOffset   = 72
	namesSectionOffsetFieldOffset = 92
	nameCountHintFieldOffset    = 96

	// minHeaderSize is the smallest index-file size that could plausibly
	// contain the header fields this parser reads.
	minHeaderSize = nameCountHintFieldOffset + 4

	entryTableRowSize = 16
	nameRecordSize    = 16
	blockChunkInfoSize = 8 + 4 + 8 + 4 // payload_offset, container_id, size_table_offset, extra_count_minus_1

	// maxConsecutiveBadNameRecords bounds the quickbms-style name-table
	// walk: this many consecutive malformed records in a row stops the
	// walk (spec.md §4.3).
	maxConsecutiveBadNameRecords = 4096
)

// IndexHeader holds the two offsets this parser trusts plus the two
// advisory counts it never uses for bounds (spec.md Open Questions #3).
type IndexHeader struct {
	EntryTableOffset   uint32
	EntryCountHint     int32
	NamesSectionOffset uint32
	NameCountHint      int32
}

// EntryTableRow is the 16-byte per-entry record at
// entryTableOffset + entry_index*16.
type EntryTableRow struct {
	BlockOffset int32
	_Reserved   int32
	AbsOffset   int32
	AbsSize     int32
}

// BlockDescriptor is the per-entry chunk-layout record referenced by an
// EntryTableRow's BlockOffset.
type BlockDescriptor struct {
	// ContainerPath is the resolved, index-directory-joined absolute path
	// of the .b2container that owns this block.
	ContainerPath string

	PayloadOffset     uint64
	ContainerID       int32 // preserved per spec.md Open Questions #2; never read for behavior
	SizeTableOffset   uint64
	ExtraChunkCount   int32 // extra_chunk_count_minus_1 + 1
}

// Chunk is one compressed run contributing to an entry's decompressed
// window: a base chunk plus zero or more extras (spec.md §3 ChunkList).
type Chunk struct {
	CompressedOffset uint64 // absolute offset within the container
	CompressedSize   int32
	UncompressedSize int32
}

// NameRecord is the 16-byte name-table record. Child > 0 marks a directory
// record, which is retained for tree bookkeeping but never emitted as a
// file.
type NameRecord struct {
	NameOffset uint64
	FileNumber int32
	Child      int32
	Name       string
}

// LogicalEntry is one name-table-driven extractable unit: a logical name
// paired with its entry-table row index.
type LogicalEntry struct {
	EntryIndex int
	Name       string
	FileNumber int32
}

func (r NameRecord) IsDirectory() bool { return r.Child > 0 }
