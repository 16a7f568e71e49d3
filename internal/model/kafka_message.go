package model

import "time"

// BatchMessageKey keys every batch envelope on the topic. Batches carry no
// ordering requirement, upserts converge in any order.
const BatchMessageKey = "batch"

// BatchMessage is the envelope published to the batch topic when the
// collector runs in kafka mode.
type BatchMessage struct {
	RunID       string    `json:"run_id"`
	PublishedAt time.Time `json:"published_at"`
	Batch       Batch     `json:"batch"`
}
