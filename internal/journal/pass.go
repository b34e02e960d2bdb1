package journal

import (
	"time"

	"github.com/SteelMorgan/offsetq/internal/domain"
	"github.com/SteelMorgan/offsetq/internal/queue"
)

// PassFromSummary builds the journal entry for a finished pass
func PassFromSummary(queueName string, summary queue.Summary, passErr error) domain.PassRecord {
	rec := domain.PassRecord{
		PassID:     summary.ID,
		QueueName:  queueName,
		FilePath:   summary.Path,
		FileSize:   summary.FileSize,
		FromOffset: summary.FromOffset,
		ToOffset:   summary.ToOffset,
		Records:    summary.Records,
		Exhausted:  summary.Exhausted,
		Deleted:    summary.Deleted,
		Timestamp:  time.Now(),
	}
	if passErr != nil {
		rec.Error = passErr.Error()
	}
	return rec
}

// Worth reports whether a pass changed anything worth journaling
func Worth(summary queue.Summary, passErr error) bool {
	return summary.Records > 0 || summary.Deleted || passErr != nil
}
