package queue

// Option configures a single pass over a queue file.
type Option func(*options)

type options struct {
	limit         int // < 0 means unbounded
	deleteOnEmpty bool
	headerWidth   int // 0 means derived from the file length
}

func defaultOptions() options {
	return options{limit: -1}
}

// WithLimit caps the number of records produced by the pass.
// A negative limit means no cap.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = n
	}
}

// WithDeleteOnEmpty removes the file once the pass consumes its last record
// instead of leaving an exhausted file behind.
func WithDeleteOnEmpty(del bool) Option {
	return func(o *options) {
		o.deleteOnEmpty = del
	}
}

// WithHeaderWidth fixes the header width instead of deriving it from the
// file length. A header already committed in the file with a larger width
// still wins.
func WithHeaderWidth(width int) Option {
	return func(o *options) {
		o.headerWidth = width
	}
}
