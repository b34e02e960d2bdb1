package queue

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
)

// State is the persisted position of a queue file.
type State struct {
	Path        string
	FileSize    int64
	Offset      int64
	HasHeader   bool
	HeaderWidth int
	Remaining   int64
	Exhausted   bool
}

// Inspect reads the header of the queue file at path without consuming
// anything or changing the file.
func Inspect(path string) (State, error) {
	file, err := os.Open(path)
	if err != nil {
		return State{}, fmt.Errorf("failed to open queue file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return State{}, fmt.Errorf("failed to stat queue file: %w", err)
	}
	length := info.Size()

	hdr, err := readHeader(bufio.NewReader(io.NewSectionReader(file, 0, length)), length)
	if err != nil {
		return State{}, fmt.Errorf("failed to recover offset of %s: %w", path, err)
	}

	width := headerWidth(length)
	if hdr.width > width {
		width = hdr.width
	}

	return State{
		Path:        path,
		FileSize:    length,
		Offset:      hdr.offset,
		HasHeader:   hdr.present,
		HeaderWidth: width,
		Remaining:   length - hdr.offset,
		Exhausted:   length > 0 && hdr.offset >= length,
	}, nil
}

// Drain runs one pass over path and returns the records it produced. Records
// consumed before a failure are returned along with the error.
func Drain(ctx context.Context, path string, opts ...Option) ([]string, error) {
	p, err := Open(ctx, path, opts...)
	if err != nil {
		return nil, err
	}

	var records []string
	for record := range p.Records() {
		records = append(records, record)
	}

	return records, p.Close()
}
