// Package stats maintains derived counters over the thread store. All
// updates are incremental deltas applied from the store's mutation
// points; nothing here rescans stored state. Counters are kept per
// business scope so one tenant's volume is never visible to another.
package stats

import (
	"sync"
	"sync/atomic"

	"inboxd/pkg/models"
)

// Aggregator holds the live counters. Counter updates are atomic
// increments so concurrent ingestion across threads never loses deltas;
// the mutexes only guard map shapes.
type Aggregator struct {
	mu    sync.RWMutex
	byBiz map[string]*scopeCounters
}

type scopeCounters struct {
	totalMessages atomic.Int64
	totalThreads  atomic.Int64
	totalUnread   atomic.Int64

	mu         sync.RWMutex
	byPlatform map[string]*atomic.Int64
}

// New returns an empty aggregator.
func New() *Aggregator {
	return &Aggregator{byBiz: make(map[string]*scopeCounters)}
}

func (a *Aggregator) scope(business string) *scopeCounters {
	a.mu.RLock()
	s, ok := a.byBiz[business]
	a.mu.RUnlock()
	if ok {
		return s
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok = a.byBiz[business]; ok {
		return s
	}
	s = &scopeCounters{byPlatform: make(map[string]*atomic.Int64)}
	a.byBiz[business] = s
	return s
}

func (s *scopeCounters) platformCounter(platform string) *atomic.Int64 {
	s.mu.RLock()
	c, ok := s.byPlatform[platform]
	s.mu.RUnlock()
	if ok {
		return c
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.byPlatform[platform]; ok {
		return c
	}
	c = new(atomic.Int64)
	s.byPlatform[platform] = c
	return c
}

// NoteThreadCreated records a new thread.
func (a *Aggregator) NoteThreadCreated(business, platform string) {
	a.scope(business).totalThreads.Add(1)
	threadsCreated.WithLabelValues(platform).Inc()
}

// NoteMessage records one stored message on the given platform.
func (a *Aggregator) NoteMessage(business, platform string, dir models.Direction) {
	s := a.scope(business)
	s.totalMessages.Add(1)
	s.platformCounter(platform).Add(1)
	if dir == models.DirectionInbound {
		s.totalUnread.Add(1)
		unreadGauge.Inc()
	}
	messagesTotal.WithLabelValues(platform, string(dir)).Inc()
}

// NoteRead records that n previously unread messages were marked read.
func (a *Aggregator) NoteRead(business string, n int) {
	if n <= 0 {
		return
	}
	a.scope(business).totalUnread.Add(int64(-n))
	unreadGauge.Sub(float64(n))
}

// NoteDedupHit records a suppressed duplicate ingestion.
func (a *Aggregator) NoteDedupHit(platform string) {
	dedupHits.WithLabelValues(platform).Inc()
}

// Snapshot returns a point-in-time copy of one business's counters.
func (a *Aggregator) Snapshot(business string) models.StatsSnapshot {
	s := a.scope(business)
	snap := models.StatsSnapshot{
		TotalMessages: s.totalMessages.Load(),
		TotalThreads:  s.totalThreads.Load(),
		TotalUnread:   s.totalUnread.Load(),
		ByPlatform:    make(map[string]int64),
	}
	s.mu.RLock()
	for p, c := range s.byPlatform {
		snap.ByPlatform[p] = c.Load()
	}
	s.mu.RUnlock()
	return snap
}
