package extractor

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// fixture lays out a minimal .b2index/.b2container pair on disk with a
// single store-mode entry, mirroring spec.md §8 scenario 1.
type fixture struct {
	indexPath     string
	containerPath string
}

func writeSingleChunkStoreFixture(t *testing.T, dir string) fixture {
	t.Helper()

	payload := []byte("0123456789ABCDEF") // 16 bytes, abs_size = 16

	containerPath := filepath.Join(dir, "data.b2container")
	if err := os.WriteFile(containerPath, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 0, 512)
	put32 := func(v int32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v))
		buf = append(buf, b[:]...)
	}
	putU32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf = append(buf, b[:]...)
	}
	putU64 := func(v uint64) {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		buf = append(buf, b[:]...)
	}
	padTo := func(n int) {
		for len(buf) < n {
			buf = append(buf, 0)
		}
	}

	// Header: entryTableOffset @68, namesSectionOffset @92.
	padTo(68)
	put32(200) // entryTableOffset
	put32(1)   // entryCountHint
	padTo(92)
	put32(300) // namesSectionOffset
	put32(1)   // nameCountHint

	// Block descriptor @100: archive_spec_ptr (u64).
	padTo(100)
	putU64(150) // archive_spec_ptr -> offset 150

	// Chunk layout @116 (block_offset+16).
	padTo(116)
	putU64(0)   // payload_offset
	put32(0)    // container_id
	putU64(250) // size_table_offset
	put32(-1)   // extra_count_minus_1 = -1 -> ExtraChunkCount = 0 (base chunk only)

	// Archive spec @150: u32 name offset -> 170.
	padTo(150)
	putU32(170)

	// Container name string @170.
	padTo(170)
	buf = append(buf, []byte("data.b2container\x00")...)

	// Entry table row @200: block_offset, _, abs_offset, abs_size.
	padTo(200)
	put32(100) // block_offset
	put32(0)
	put32(0)  // abs_offset
	put32(16) // abs_size

	// Size table @250: base chunk (baseUncompressed u64, baseCompressed i32).
	padTo(250)
	putU64(16)
	put32(16)

	// Name table @300: one record (name_offset u64, file_number i32, child i32).
	padTo(300)
	putU64(340) // name_offset
	put32(0)    // file_number -> entry table index 0
	put32(0)    // child == 0, not a directory

	// Name string @340.
	padTo(340)
	buf = append(buf, []byte("Foo.bin\x00")...)

	indexPath := filepath.Join(dir, "data.b2index")
	if err := os.WriteFile(indexPath, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	return fixture{indexPath: indexPath, containerPath: containerPath}
}

func TestRunSingleChunkStoreWritesVerbatimBytes(t *testing.T) {
	dir := t.TempDir()
	fx := writeSingleChunkStoreFixture(t, dir)
	outDir := filepath.Join(dir, "out")

	var logs []string
	err := Run(Config{
		IndexPath:       fx.indexPath,
		ContainerExt:    ".b2container",
		OutputDirectory: outDir,
		LogLevel:        LogFull,
	}, Callbacks{Log: func(m string) { logs = append(logs, m) }})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	written := filepath.Join(outDir, "misc", "Foo.bin")
	data, err := os.ReadFile(written)
	if err != nil {
		t.Fatalf("expected output at %s: %v", written, err)
	}
	if string(data) != "0123456789ABCDEF" {
		t.Fatalf("unexpected payload: %q", data)
	}
}

func TestRunOnlyAssetsSkipsNonAssetEntry(t *testing.T) {
	dir := t.TempDir()
	fx := writeSingleChunkStoreFixture(t, dir)
	outDir := filepath.Join(dir, "out")

	err := Run(Config{
		IndexPath:       fx.indexPath,
		ContainerExt:    ".b2container",
		OutputDirectory: outDir,
		OnlyAssets:      true,
		LogLevel:        LogFull,
	}, Callbacks{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(outDir, "misc", "Foo.bin")); !os.IsNotExist(err) {
		t.Fatalf("expected entry to be skipped under Only Assets Mode, stat err = %v", err)
	}
}

func TestRunProducesSideLogFile(t *testing.T) {
	dir := t.TempDir()
	fx := writeSingleChunkStoreFixture(t, dir)
	outDir := filepath.Join(dir, "out")

	if err := Run(Config{
		IndexPath:       fx.indexPath,
		ContainerExt:    ".b2container",
		OutputDirectory: outDir,
	}, Callbacks{}); err != nil {
		t.Fatal(err)
	}

	matches, err := filepath.Glob(filepath.Join(outDir, "extract_log_*.log"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly one side log file, got %v", matches)
	}
}

func TestRunFailsOnMissingIndex(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "out")
	err := Run(Config{
		IndexPath:       filepath.Join(t.TempDir(), "does-not-exist.b2index"),
		ContainerExt:    ".b2container",
		OutputDirectory: outDir,
	}, Callbacks{})
	if err == nil {
		t.Fatal("expected an error for a missing index file")
	}
}
