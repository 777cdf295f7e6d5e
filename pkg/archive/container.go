package archive

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// containerReadBufferSize is the per-handle read buffer spec.md §4.2 calls
// for: "a 64 KiB read buffer".
const containerReadBufferSize = 64 * 1024

// openContainer is one cached, reusable random-access handle onto a
// .b2container file.
type openContainer struct {
	file   *os.File
	reader *bufio.Reader
	pos    int64
}

// ContainerReader is the cache of open container files described in
// spec.md §4.2 (C2): keyed by absolute path, opened on first use, never
// evicted mid-run, closed all at once when the driver finishes.
type ContainerReader struct {
	open map[string]*openContainer
}

// NewContainerReader returns an empty container cache, ready for one run.
func NewContainerReader() *ContainerReader {
	return &ContainerReader{open: make(map[string]*openContainer)}
}

// Read seeks to offset in the container at path and reads exactly length
// bytes, opening and caching the file handle on first use. It fails with a
// KindMissingContainer error if the file can't be opened, or
// KindContainerIO if the requested range falls outside the file.
func (c *ContainerReader) Read(path string, offset uint64, length int) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	oc, err := c.get(path)
	if err != nil {
		return nil, err
	}

	if oc.pos != int64(offset) {
		if _, err := oc.file.Seek(int64(offset), io.SeekStart); err != nil {
			return nil, newError(KindContainerIO, "seek %s to %d: %w", path, offset, err)
		}
		oc.reader.Reset(oc.file)
		oc.pos = int64(offset)
	}

	buf := make([]byte, length)
	n, err := io.ReadFull(oc.reader, buf)
	oc.pos += int64(n)
	if err != nil {
		return nil, newError(KindContainerIO, "read %d bytes at %d from %s: %w", length, offset, path, err)
	}
	return buf, nil
}

func (c *ContainerReader) get(path string) (*openContainer, error) {
	if oc, ok := c.open[path]; ok {
		return oc, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(KindMissingContainer, "open container %s: %w", path, err)
	}
	oc := &openContainer{file: f, reader: bufio.NewReaderSize(f, containerReadBufferSize)}
	c.open[path] = oc
	return oc, nil
}

// Close releases every cached file handle. The driver must call this on
// every exit path, success or failure.
func (c *ContainerReader) Close() error {
	var firstErr error
	for path, oc := range c.open {
		if err := oc.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close container %s: %w", path, err)
		}
		delete(c.open, path)
	}
	return firstErr
}
