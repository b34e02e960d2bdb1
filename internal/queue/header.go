package queue

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
)

const headerMarker = '@'

// header is the skip offset persisted at the start of a queue file.
//
//	'@' <decimal offset> <space padding up to width>
//
// The header is written over bytes that were already consumed, so it never
// moves the unread body.
type header struct {
	present bool
	offset  int64
	// width is the smallest width a rewrite may use without leaving stale
	// digits from the committed header behind.
	width int
}

// headerWidth returns the width reserved for a file of the given length:
// the marker, room for the digits of the length itself and one trailing
// space so the digits are always terminated inside the header.
func headerWidth(length int64) int {
	return len(strconv.FormatInt(length, 10)) + 2
}

// readHeader decodes the header from the first bytes of a file of the given
// length. A file not starting with the marker has an implicit offset of 0.
func readHeader(r io.ByteReader, length int64) (header, error) {
	b, err := r.ReadByte()
	if err == io.EOF {
		return header{}, nil
	}
	if err != nil {
		return header{}, fmt.Errorf("failed to read header: %w", err)
	}
	if b != headerMarker {
		return header{}, nil
	}

	h := header{present: true}
	digits := 0
	for {
		c, err := r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return header{}, fmt.Errorf("failed to read header: %w", err)
		}
		if c < '0' || c > '9' {
			break
		}

		if h.offset > (math.MaxInt64-9)/10 {
			return header{}, fmt.Errorf("%w: offset does not fit in 64 bits", ErrMalformedHeader)
		}
		h.offset = h.offset*10 + int64(c-'0')
		digits++

		if h.offset > length {
			return header{}, fmt.Errorf("%w: offset exceeds file length %d", ErrMalformedHeader, length)
		}
	}

	if digits == 0 {
		return header{}, fmt.Errorf("%w: marker is not followed by an offset", ErrMalformedHeader)
	}

	h.width = digits + 2
	// The header itself is consumed data; an offset pointing inside it would
	// hand the header back out as a record.
	if h.offset < int64(digits+1) {
		return header{}, fmt.Errorf("%w: offset %d points inside the header", ErrMalformedHeader, h.offset)
	}

	return h, nil
}

// encodeHeader renders offset padded with spaces to exactly width bytes.
func encodeHeader(offset int64, width int) ([]byte, error) {
	digits := strconv.FormatInt(offset, 10)

	// At least one padding byte must remain to terminate the digits.
	if len(digits)+2 > width {
		return nil, fmt.Errorf("%w: offset %d needs %d bytes, header width is %d",
			ErrHeaderOverflow, offset, len(digits)+2, width)
	}
	if int64(width) > offset {
		return nil, fmt.Errorf("%w: header width %d would overwrite unread bytes before offset %d",
			ErrHeaderOverflow, width, offset)
	}

	buf := bytes.Repeat([]byte{' '}, width)
	buf[0] = headerMarker
	copy(buf[1:], digits)
	return buf, nil
}
