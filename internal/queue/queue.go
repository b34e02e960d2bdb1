// Package queue implements a persistent FIFO queue over a newline-delimited
// text file. Consumed records stay in the file; the position of the first
// unconsumed byte is written into the file's leading bytes as a fixed-width
// header ('@' followed by a decimal offset and space padding), so a later pass
// resumes where the previous one stopped without rewriting the body.
//
// A pass is not safe for concurrent use, and two passes over the same file at
// the same time race on the header: one of the updates is lost and records
// may be delivered twice.
package queue

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Pass is one consumption pass over a queue file. It is created by Open,
// produces records through Records and persists the new skip offset exactly
// once when the iteration ends, however it ends.
type Pass struct {
	id   string
	path string
	opts options

	file   *os.File
	reader *bufio.Reader
	ctx    context.Context
	span   trace.Span

	length int64 // file length when the pass was opened
	start  int64 // recovered skip offset
	cursor int64 // first byte not yet handed out
	width  int   // header width used for the commit
	count  int

	used    bool
	done    bool
	deleted bool
	err     error
}

// Summary describes what a finished pass did.
type Summary struct {
	ID         string
	Path       string
	FromOffset int64
	ToOffset   int64
	FileSize   int64
	Records    int
	Deleted    bool
	Exhausted  bool
}

// Open starts a pass over the queue file at path. The skip offset is recovered
// from the header before Open returns, so a missing, unreadable or malformed
// file is reported here and nothing in the file has been changed.
func Open(ctx context.Context, path string, opts ...Option) (*Pass, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat queue file: %w", err)
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return nil, fmt.Errorf("queue file %s is not a regular file", path)
	}
	length := info.Size()

	hdr, err := readHeader(bufio.NewReader(io.NewSectionReader(file, 0, length)), length)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to recover offset of %s: %w", path, err)
	}

	width := o.headerWidth
	if width <= 0 {
		width = headerWidth(length)
	}
	if hdr.width > width {
		width = hdr.width
	}

	if _, err := file.Seek(hdr.offset, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to seek to offset %d: %w", hdr.offset, err)
	}

	p := &Pass{
		id:     uuid.NewString(),
		path:   path,
		opts:   o,
		file:   file,
		reader: bufio.NewReader(io.LimitReader(file, length-hdr.offset)),
		length: length,
		start:  hdr.offset,
		cursor: hdr.offset,
		width:  width,
	}

	p.ctx, p.span = startSpan(ctx, "queue.pass",
		attribute.String("queue.path", path),
		attribute.String("queue.pass_id", p.id),
		attribute.Int64("queue.file_size", length),
		attribute.Int64("queue.start_offset", hdr.offset),
		attribute.Int("queue.limit", o.limit),
	)

	log.Debug().
		Str("pass_id", p.id).
		Str("path", path).
		Int64("file_size", length).
		Int64("offset", hdr.offset).
		Bool("header", hdr.present).
		Int("header_width", width).
		Msg("Queue pass opened")

	return p, nil
}

// ID returns the identifier assigned to the pass.
func (p *Pass) ID() string {
	return p.id
}

// Records returns the records of the pass, each including its trailing
// newline as stored. The sequence can be ranged over once; breaking out of
// the loop, exhausting the limit, reaching the end of the file or a panic in
// the loop body all end the pass and commit the offset. Check Err afterwards.
func (p *Pass) Records() iter.Seq[string] {
	return func(yield func(string) bool) {
		if p.used || p.done {
			if p.err == nil {
				p.err = ErrPassUsed
			}
			return
		}
		p.used = true
		defer p.finish()

		for p.opts.limit < 0 || p.count < p.opts.limit {
			if p.cursor >= p.length {
				return
			}
			if err := p.ctx.Err(); err != nil {
				p.err = err
				return
			}

			line, err := p.reader.ReadString('\n')
			if err != nil && err != io.EOF {
				p.err = fmt.Errorf("failed to read record at offset %d: %w", p.cursor, err)
				return
			}
			if line == "" {
				// The file was truncated under us.
				return
			}

			p.cursor += int64(len(line))
			p.count++

			if !yield(line) {
				return
			}
		}
	}
}

// Err returns the first error met while reading or committing the pass.
func (p *Pass) Err() error {
	return p.err
}

// Close ends the pass if Records has not already done so. It is safe to call
// more than once and returns the pass error.
func (p *Pass) Close() error {
	p.finish()
	return p.err
}

// Summary reports the outcome of the pass so far.
func (p *Pass) Summary() Summary {
	return Summary{
		ID:         p.id,
		Path:       p.path,
		FromOffset: p.start,
		ToOffset:   p.cursor,
		FileSize:   p.length,
		Records:    p.count,
		Deleted:    p.deleted,
		Exhausted:  p.cursor >= p.length,
	}
}

// finish commits the offset and releases the file exactly once.
func (p *Pass) finish() {
	if p.done {
		return
	}
	p.done = true

	err := p.commit()
	if cerr := p.file.Close(); cerr != nil && err == nil && !p.deleted {
		err = fmt.Errorf("failed to close queue file: %w", cerr)
	}
	if err != nil && p.err == nil {
		p.err = err
	}

	p.span.SetAttributes(
		attribute.Int64("queue.end_offset", p.cursor),
		attribute.Int("queue.records", p.count),
		attribute.Bool("queue.deleted", p.deleted),
	)
	endSpan(p.span, p.err, "queue pass finished")

	if p.err != nil {
		log.Error().
			Err(p.err).
			Str("pass_id", p.id).
			Str("path", p.path).
			Int64("offset", p.cursor).
			Int("records", p.count).
			Msg("Queue pass failed")
		return
	}

	log.Info().
		Str("pass_id", p.id).
		Str("path", p.path).
		Int64("from_offset", p.start).
		Int64("to_offset", p.cursor).
		Int64("file_size", p.length).
		Int("records", p.count).
		Bool("deleted", p.deleted).
		Msg("Queue pass committed")
}

// commit writes the new header or removes the exhausted file.
func (p *Pass) commit() error {
	point := p.cursor

	switch {
	case point == 0:
		// Nothing was ever consumed; the file stays headerless.
		return nil

	case point >= p.length && p.opts.deleteOnEmpty:
		if err := p.file.Close(); err != nil {
			return fmt.Errorf("failed to close queue file: %w", err)
		}
		if err := os.Remove(p.path); err != nil {
			return fmt.Errorf("failed to remove exhausted queue file: %w", err)
		}
		p.deleted = true
		return nil

	case point == p.start:
		// The header already says this.
		return nil
	}

	if point > p.length {
		point = p.length
	}

	started := time.Now()
	if err := commitHeader(p.file, point, p.width); err != nil {
		return fmt.Errorf("failed to commit offset %d to %s: %w", point, p.path, err)
	}

	log.Debug().
		Str("pass_id", p.id).
		Int64("offset", point).
		Int("header_width", p.width).
		Dur("took", time.Since(started)).
		Msg("Header committed")

	return nil
}
