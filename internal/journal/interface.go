package journal

import (
	"context"

	"github.com/SteelMorgan/offsetq/internal/domain"
)

// Store keeps a history of queue passes.
// It is an audit trail only: the skip offset itself always lives in the
// queue file header.
type Store interface {
	// Record appends a pass to the history of its file
	Record(ctx context.Context, rec domain.PassRecord) error

	// Last returns the most recent pass for a file, or nil if there is none
	Last(ctx context.Context, filePath string) (*domain.PassRecord, error)

	// List returns passes for a file, oldest first.
	// An empty filePath lists every file.
	List(ctx context.Context, filePath string) ([]domain.PassRecord, error)

	// Delete removes the history of a file
	Delete(ctx context.Context, filePath string) error

	// Close closes the store
	Close() error
}
