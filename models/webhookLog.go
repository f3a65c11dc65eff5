package models

import "time"

// WebhookLog is the append-only audit of every inbound processor callback.
// The row is written before any verification or processing, so malformed and
// unverifiable events are retained. Only the processed flag and error message
// change after insert.
type WebhookLog struct {
	ID           int        `gorm:"primary_key" json:"id"`
	Payload      []byte     `gorm:"type:mediumblob" json:"payload"`
	Signature    string     `gorm:"size:128" json:"signature"`
	Processed    bool       `gorm:"index;default:false" json:"processed"`
	ErrorMessage *string    `gorm:"size:1000" json:"error_message"`
	ReceivedAt   time.Time  `gorm:"autoCreateTime;index" json:"received_at"`
	ProcessedAt  *time.Time `json:"processed_at"`
}

// WebhookStats is the cached aggregate served by the stats endpoint.
type WebhookStats struct {
	Total        int64      `json:"total"`
	Processed    int64      `json:"processed"`
	Failed       int64      `json:"failed"`
	LastReceived *time.Time `json:"last_received"`
}
