// Package ingest carries webhook payloads from the listener to the
// normalization workers through a bounded queue. The listener never
// blocks: when the queue is full the payload is dropped and the
// connector is told to retry.
package ingest

import (
	"sync"

	"github.com/valyala/bytebufferpool"

	"inboxd/pkg/stats"
)

// Job is one raw webhook payload awaiting normalization. Body is a
// pooled buffer; the worker returns it after processing.
type Job struct {
	Platform string
	Business string
	Body     *bytebufferpool.ByteBuffer
}

// Queue is a fixed-capacity job queue.
type Queue struct {
	jobs chan Job

	closeOnce sync.Once
}

// NewQueue returns a queue holding at most capacity jobs.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{jobs: make(chan Job, capacity)}
}

// TryEnqueue offers the payload without blocking. The raw bytes are
// copied into a pooled buffer so the caller may reuse its slice
// immediately. Returns false when the queue is full.
func (q *Queue) TryEnqueue(platform, business string, raw []byte) bool {
	buf := bytebufferpool.Get()
	buf.Set(raw)
	select {
	case q.jobs <- Job{Platform: platform, Business: business, Body: buf}:
		stats.QueueDepth.Set(float64(len(q.jobs)))
		return true
	default:
		bytebufferpool.Put(buf)
		stats.WebhookDropped.Inc()
		return false
	}
}

// Close stops accepting jobs and lets workers drain the remainder.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.jobs) })
}

// Len reports the current queue depth.
func (q *Queue) Len() int { return len(q.jobs) }
