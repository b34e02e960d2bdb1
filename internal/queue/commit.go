package queue

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// commitHeader overwrites the first width bytes of file with the header for
// offset. The region is mapped and flushed so the update reaches the file
// without touching any byte past the header.
func commitHeader(file *os.File, offset int64, width int) (err error) {
	buf, err := encodeHeader(offset, width)
	if err != nil {
		return err
	}

	region, err := mmap.MapRegion(file, width, mmap.RDWR, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to map header region: %w", err)
	}
	defer func() {
		if uerr := region.Unmap(); uerr != nil && err == nil {
			err = fmt.Errorf("failed to unmap header region: %w", uerr)
		}
	}()

	if n := copy(region, buf); n != width {
		return fmt.Errorf("failed to write header: wrote %d of %d bytes", n, width)
	}

	if err = region.Flush(); err != nil {
		return fmt.Errorf("failed to flush header: %w", err)
	}

	return nil
}
