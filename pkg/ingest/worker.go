package ingest

import (
	"sync"

	"github.com/valyala/bytebufferpool"

	"inboxd/pkg/directory"
	"inboxd/pkg/logger"
	"inboxd/pkg/normalize"
	"inboxd/pkg/stats"
)

// Pool runs the normalization workers over a queue.
type Pool struct {
	q   *Queue
	dir *directory.Directory
	wg  sync.WaitGroup
}

// NewPool wires workers to q and dir; call Start to begin draining.
func NewPool(q *Queue, dir *directory.Directory) *Pool {
	return &Pool{q: q, dir: dir}
}

// Start launches n workers.
func (p *Pool) Start(n int) {
	if n <= 0 {
		n = 4
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.run()
	}
	logger.Info("ingest_workers_started", "workers", n)
}

// Stop closes the queue and waits for workers to drain it.
func (p *Pool) Stop() {
	p.q.Close()
	p.wg.Wait()
	logger.Info("ingest_workers_stopped")
}

func (p *Pool) run() {
	defer p.wg.Done()
	for job := range p.q.jobs {
		p.process(job)
		stats.QueueDepth.Set(float64(len(p.q.jobs)))
	}
}

func (p *Pool) process(job Job) {
	defer bytebufferpool.Put(job.Body)

	drafts, rejected, err := normalize.Normalize(job.Platform, job.Body.Bytes())
	if err != nil {
		logger.Warn("ingest_payload_rejected", "platform", job.Platform, "error", err)
		return
	}
	if rejected > 0 {
		logger.Warn("ingest_events_rejected", "platform", job.Platform, "rejected", rejected)
	}
	for _, d := range drafts {
		if _, err := p.dir.Ingest(job.Business, d); err != nil {
			logger.Error("ingest_append_failed", "platform", job.Platform, "sender", d.Sender, "error", err)
		}
	}
}
