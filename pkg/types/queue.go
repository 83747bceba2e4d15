package types

import "time"

// QueueItemType selects how the worker processes a queue item.
type QueueItemType string

// Queue item type constants
const (
	QueueText        QueueItemType = "text"
	QueueImage       QueueItemType = "image"
	QueueMaintenance QueueItemType = "maintenance"
	QueueInsightGen  QueueItemType = "insight_gen"
	QueueDiarization QueueItemType = "diarization"
)

// ValidQueueItemTypes lists every accepted queue item type.
var ValidQueueItemTypes = []QueueItemType{
	QueueText, QueueImage, QueueMaintenance, QueueInsightGen, QueueDiarization,
}

// IsValidQueueItemType checks if a queue item type is valid.
func IsValidQueueItemType(t QueueItemType) bool {
	for _, v := range ValidQueueItemTypes {
		if v == t {
			return true
		}
	}
	return false
}

// QueueStatus is the processing state of a queue item.
type QueueStatus string

// Queue status constants. Items are removed from the queue on success, so
// there is no completed status.
const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueFailed     QueueStatus = "failed"
)

// QueueItem is a unit of pending work for the single worker loop.
type QueueItem struct {
	ID         string        `json:"id"`
	Content    string        `json:"content"`
	Type       QueueItemType `json:"type"`
	Status     QueueStatus   `json:"status"`
	Timestamp  time.Time     `json:"timestamp"`
	RetryCount int           `json:"retry_count"`
	Error      string        `json:"error,omitempty"`
}

// Eligible reports whether the worker may pick the item.
func (q *QueueItem) Eligible(maxRetries int) bool {
	switch q.Status {
	case QueuePending:
		return true
	case QueueFailed:
		return q.RetryCount < maxRetries
	default:
		return false
	}
}

// IsAbandoned reports whether the item failed and exhausted its retries.
// Abandoned items stay in the queue as failed and are never picked again.
func (q *QueueItem) IsAbandoned(maxRetries int) bool {
	return q.Status == QueueFailed && q.RetryCount >= maxRetries
}
