package domain

import "time"

// PassRecord describes one consumption pass over a queue file
type PassRecord struct {
	PassID     string    `json:"pass_id"`
	QueueName  string    `json:"queue_name"` // Name from the queue definition, empty for ad-hoc passes
	FilePath   string    `json:"file_path"`  // Full path to the queue file
	FileSize   int64     `json:"file_size"`  // File size when the pass started
	FromOffset int64     `json:"from_offset"`
	ToOffset   int64     `json:"to_offset"`
	Records    int       `json:"records"`
	Exhausted  bool      `json:"exhausted"`
	Deleted    bool      `json:"deleted"` // File was removed at the end of the pass
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
