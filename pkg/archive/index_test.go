package archive

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// fixtureWriter accumulates bytes at known offsets for hand-built index
// fixtures, mirroring the teacher's bytes.Buffer + encoding/binary style
// golden vectors in pkg/bundle/bundle_test.go.
type fixtureWriter struct {
	buf []byte
}

func (w *fixtureWriter) ensure(n int) {
	if len(w.buf) < n {
		grown := make([]byte, n)
		copy(grown, w.buf)
		w.buf = grown
	}
}

func (w *fixtureWriter) putUint32At(off int, v uint32) {
	w.ensure(off + 4)
	binary.LittleEndian.PutUint32(w.buf[off:], v)
}

func (w *fixtureWriter) putInt32At(off int, v int32) {
	w.putUint32At(off, uint32(v))
}

func (w *fixtureWriter) putUint64At(off int, v uint64) {
	w.ensure(off + 8)
	binary.LittleEndian.PutUint64(w.buf[off:], v)
}

func (w *fixtureWriter) putBytesAt(off int, b []byte) {
	w.ensure(off + len(b))
	copy(w.buf[off:], b)
}

func (w *fixtureWriter) putCStringAt(off int, s string) {
	w.putBytesAt(off, append([]byte(s), 0))
}

func writeFixtureFile(t *testing.T, w *fixtureWriter) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.b2index")
	if err := os.WriteFile(path, w.buf, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestOpenHeaderParsing(t *testing.T) {
	w := &fixtureWriter{}
	w.putUint32At(entryTableOffsetFieldOffset, 200)
	w.putInt32At(entryCountHintFieldOffset, 5)
	w.putUint32At(namesSectionOffsetFieldOffset, 300)
	w.putInt32At(nameCountHintFieldOffset, 5)
	w.ensure(400)

	path := writeFixtureFile(t, w)
	idx, err := Open(path, ".b2container")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer idx.Close()

	if idx.Header.EntryTableOffset != 200 {
		t.Errorf("expected entryTableOffset 200, got %d", idx.Header.EntryTableOffset)
	}
	if idx.Header.NamesSectionOffset != 300 {
		t.Errorf("expected namesSectionOffset 300, got %d", idx.Header.NamesSectionOffset)
	}
}

func TestOpenRejectsOutOfBoundsOffsets(t *testing.T) {
	w := &fixtureWriter{}
	w.putUint32At(entryTableOffsetFieldOffset, 9999) // past EOF
	w.putUint32At(namesSectionOffsetFieldOffset, 50)
	w.ensure(100)

	path := writeFixtureFile(t, w)
	_, err := Open(path, ".b2container")
	if err == nil {
		t.Fatalf("expected Open to reject an out-of-bounds entryTableOffset")
	}
	var archErr *Error
	if !asError(err, &archErr) || archErr.Kind != KindIndexMalformed {
		t.Fatalf("expected KindIndexMalformed, got %v", err)
	}
}

func TestResolveBlockAndChunkList(t *testing.T) {
	w := &fixtureWriter{}
	w.putUint32At(entryTableOffsetFieldOffset, 16)
	w.putUint32At(namesSectionOffsetFieldOffset, 16)

	// Entry table row 0 at offset 16: block_offset=128. The block sits past
	// the header fields at 68..100 so writing it cannot clobber them.
	w.putInt32At(16, 128)
	w.putInt32At(20, 0)
	w.putInt32At(24, 0)    // abs_offset
	w.putInt32At(28, 1500) // abs_size

	// Block descriptor at 128: archive_spec_ptr -> 400.
	w.putUint64At(128, 400)
	// Chunk layout at 128+16=144: payload_offset, container_id, size_table_offset, extra_count_minus_1.
	w.putUint64At(144, 0)   // payload_offset
	w.putInt32At(152, 0)    // container_id
	w.putUint64At(156, 200) // size_table_offset
	w.putInt32At(164, 0)    // extra_count_minus_1 = 0 -> ExtraChunkCount = 1 (one real extra chunk)

	// Archive spec at 400, clear of the chunk table.
	w.putUint32At(400, 420) // archive spec name offset -> 420
	w.putCStringAt(420, "DataContainer")

	// Size table at 200: baseUncompressed=1024 (u64), baseCompressed=400 (i32), one extra.
	w.putUint64At(200, 1024)
	w.putInt32At(208, 400)
	// Extra triple at 212: unc=1024, start=400, end=900.
	w.putInt32At(212, 1024)
	w.putInt32At(216, 400)
	w.putInt32At(220, 900)

	w.ensure(1024)
	path := writeFixtureFile(t, w)
	idx, err := Open(path, ".b2container")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer idx.Close()

	row, err := idx.EntryRow(0)
	if err != nil {
		t.Fatalf("EntryRow failed: %v", err)
	}
	if row.BlockOffset != 128 {
		t.Fatalf("expected block offset 128, got %d", row.BlockOffset)
	}

	block, err := idx.ResolveBlock(row.BlockOffset)
	if err != nil {
		t.Fatalf("ResolveBlock failed: %v", err)
	}
	if filepath.Base(block.ContainerPath) != "DataContainer.b2container" {
		t.Errorf("expected resolved container name with extension appended, got %s", block.ContainerPath)
	}
	if block.ExtraChunkCount != 1 {
		t.Fatalf("expected ExtraChunkCount 1, got %d", block.ExtraChunkCount)
	}

	chunks, total, err := idx.ChunkList(block)
	if err != nil {
		t.Fatalf("ChunkList failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks (base+1 extra), got %d", len(chunks))
	}
	if chunks[0].CompressedSize != 400 || chunks[0].UncompressedSize != 1024 {
		t.Errorf("unexpected base chunk: %+v", chunks[0])
	}
	if chunks[1].CompressedOffset != 400 || chunks[1].CompressedSize != 500 || chunks[1].UncompressedSize != 1024 {
		t.Errorf("unexpected extra chunk: %+v", chunks[1])
	}
	if total != 2048 {
		t.Errorf("expected total uncompressed sum 2048, got %d", total)
	}
}

func TestWalkNamesStopsOnBadRun(t *testing.T) {
	w := &fixtureWriter{}
	w.putUint32At(entryTableOffsetFieldOffset, 16)
	w.putUint32At(namesSectionOffsetFieldOffset, 128)

	// The name table starts past the header fields at 68..100 so the
	// records written below cannot clobber them.
	namesOff := 128
	stringArea := namesOff + (maxConsecutiveBadNameRecords+5)*nameRecordSize + 64

	// One good record, then a long run of malformed ones (zero name_offset).
	w.putUint64At(namesOff, uint64(stringArea))
	w.putInt32At(namesOff+8, 1)
	w.putInt32At(namesOff+12, 0)
	w.putCStringAt(stringArea, "good/record.bin")

	badStart := namesOff + nameRecordSize
	for i := 0; i < maxConsecutiveBadNameRecords+2; i++ {
		off := badStart + i*nameRecordSize
		w.putUint64At(off, 0) // malformed: zero name offset
		w.putInt32At(off+8, 1)
		w.putInt32At(off+12, 0)
	}
	w.ensure(stringArea + 128)

	path := writeFixtureFile(t, w)
	idx, err := Open(path, ".b2container")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer idx.Close()

	records, err := idx.WalkNames()
	if err != nil {
		t.Fatalf("WalkNames failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly 1 successfully parsed record, got %d", len(records))
	}
	if records[0].Name != "good/record.bin" {
		t.Errorf("unexpected name: %s", records[0].Name)
	}
}

func TestWalkNamesMarksDirectories(t *testing.T) {
	w := &fixtureWriter{}
	w.putUint32At(entryTableOffsetFieldOffset, 16)
	w.putUint32At(namesSectionOffsetFieldOffset, 16)

	stringArea := 16 + 2*nameRecordSize

	w.putUint64At(16, uint64(stringArea))
	w.putInt32At(16+8, 1)
	w.putInt32At(16+12, 1) // child > 0: directory
	w.putCStringAt(stringArea, "SomeDir")

	secondOff := 16 + nameRecordSize
	secondString := stringArea + 64 // 112: past the header fields at 68..100
	w.putUint64At(secondOff, uint64(secondString))
	w.putInt32At(secondOff+8, 2)
	w.putInt32At(secondOff+12, 0)
	w.putCStringAt(secondString, "SomeDir/File.bin")

	w.ensure(secondString + 64)
	path := writeFixtureFile(t, w)
	idx, err := Open(path, ".b2container")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer idx.Close()

	records, err := idx.WalkNames()
	if err != nil {
		t.Fatalf("WalkNames failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if !records[0].IsDirectory() {
		t.Errorf("expected first record to be a directory")
	}
	if records[1].IsDirectory() {
		t.Errorf("expected second record to be a file")
	}
}

// asError is a small errors.As helper kept local to the test file so it
// doesn't need the top-level errors import sprinkled everywhere above.
func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
