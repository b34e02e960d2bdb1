package queue

import "errors"

// Errors returned by queue passes. Resource errors (missing file, permissions)
// are returned wrapped as they come from the os package.
var (
	// ErrMalformedHeader means the file starts with the header marker but the
	// offset that follows is missing or cannot be valid for this file.
	ErrMalformedHeader = errors.New("offsetq: malformed header")

	// ErrHeaderOverflow means the header cannot be written without growing
	// past its fixed width or past the consumed region.
	ErrHeaderOverflow = errors.New("offsetq: header overflow")

	// ErrPassUsed is reported when Records is called on a pass that has
	// already been iterated or closed.
	ErrPassUsed = errors.New("offsetq: pass already used")
)
