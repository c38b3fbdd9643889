// Package store owns thread and message state. The in-memory aggregate
// is authoritative at runtime; every mutation is also written to pebble
// so state survives restarts. Mutations on one thread are serialized by
// a per-thread mutex; different threads never contend.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/cockroachdb/pebble"

	"inboxd/pkg/logger"
	"inboxd/pkg/models"
	"inboxd/pkg/stats"
	"inboxd/pkg/utils"
)

// Store holds all threads for all businesses. The outer mutex guards
// only the map shape; thread mutations take the per-thread lock.
type Store struct {
	db  *pebble.DB
	agg *stats.Aggregator

	mu      sync.RWMutex
	threads map[string]*threadState
}

type threadState struct {
	mu sync.Mutex
	t  models.Thread
	// extIDs indexes inbound external ids to stored message ids for
	// duplicate suppression.
	extIDs map[string]string
}

// threadMeta is the persisted thread header; messages live under their
// own keys so appends never rewrite history.
type threadMeta struct {
	ID             string `json:"id"`
	Business       string `json:"business_id"`
	Platform       string `json:"platform"`
	Customer       string `json:"customer_identity"`
	CustomerName   string `json:"customer_name,omitempty"`
	Unread         int    `json:"unread_count"`
	IsFlagged      bool   `json:"is_flagged"`
	IsArchived     bool   `json:"is_archived"`
	LastActivityTS int64  `json:"last_activity_ts"`
	CreatedTS      int64  `json:"created_ts"`
	Version        uint64 `json:"version"`
}

// Open opens (or creates) the pebble database at path and loads all
// persisted threads back into memory, replaying counter deltas into agg.
func Open(path string, agg *stats.Aggregator) (*Store, error) {
	logger.Info("opening_store", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	s := &Store{db: db, agg: agg, threads: make(map[string]*threadState)}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("store_opened", "path", path, "threads", len(s.threads))
	return s, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	logger.Info("store_closed")
	return err
}

func metaKey(threadID string) []byte {
	return []byte("thread:" + threadID + ":meta")
}

// msgKey orders messages by (created_ts, id); message ids are themselves
// time-sortable so the key order matches the stored order invariant.
func msgKey(threadID string, m models.Message) []byte {
	return []byte(fmt.Sprintf("thread:%s:msg:%020d-%s", threadID, m.CreatedTS, m.ID))
}

func (s *Store) load() error {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()

	prefix := []byte("thread:")
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		k := iter.Key()
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		if !bytes.HasSuffix(k, []byte(":meta")) {
			continue
		}
		var meta threadMeta
		if err := json.Unmarshal(iter.Value(), &meta); err != nil {
			logger.Error("load_thread_meta_failed", "key", string(k), "error", err)
			continue
		}
		ts := &threadState{
			t: models.Thread{
				ID:             meta.ID,
				Business:       meta.Business,
				Platform:       meta.Platform,
				Customer:       meta.Customer,
				CustomerName:   meta.CustomerName,
				Unread:         meta.Unread,
				IsFlagged:      meta.IsFlagged,
				IsArchived:     meta.IsArchived,
				LastActivityTS: meta.LastActivityTS,
				CreatedTS:      meta.CreatedTS,
				Version:        meta.Version,
			},
			extIDs: make(map[string]string),
		}
		if err := s.loadMessages(ts); err != nil {
			return err
		}
		s.threads[meta.ID] = ts
		s.replayCounters(ts)
	}
	return iter.Error()
}

func (s *Store) loadMessages(ts *threadState) error {
	prefix := []byte("thread:" + ts.t.ID + ":msg:")
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Error("load_message_failed", "key", string(iter.Key()), "error", err)
			continue
		}
		ts.t.Messages = append(ts.t.Messages, m)
		if m.Direction == models.DirectionInbound && m.ExternalID != "" {
			ts.extIDs[m.ExternalID] = m.ID
		}
	}
	return iter.Error()
}

// replayCounters reapplies a loaded thread's deltas to the aggregator so
// stats survive restarts without rescanning.
func (s *Store) replayCounters(ts *threadState) {
	if s.agg == nil {
		return
	}
	s.agg.NoteThreadCreated(ts.t.Business, ts.t.Platform)
	inbound := 0
	for _, m := range ts.t.Messages {
		s.agg.NoteMessage(ts.t.Business, m.Platform, m.Direction)
		if m.Direction == models.DirectionInbound {
			inbound++
		}
	}
	// loaded threads may have read messages; settle unread down to the
	// persisted count
	if read := inbound - ts.t.Unread; read > 0 {
		s.agg.NoteRead(ts.t.Business, read)
	}
}

func (s *Store) persistMeta(ts *threadState) {
	meta := threadMeta{
		ID:             ts.t.ID,
		Business:       ts.t.Business,
		Platform:       ts.t.Platform,
		Customer:       ts.t.Customer,
		CustomerName:   ts.t.CustomerName,
		Unread:         ts.t.Unread,
		IsFlagged:      ts.t.IsFlagged,
		IsArchived:     ts.t.IsArchived,
		LastActivityTS: ts.t.LastActivityTS,
		CreatedTS:      ts.t.CreatedTS,
		Version:        ts.t.Version,
	}
	b, _ := json.Marshal(meta)
	if err := s.db.Set(metaKey(ts.t.ID), b, pebble.Sync); err != nil {
		logger.Error("persist_thread_meta_failed", "thread", ts.t.ID, "error", err)
	}
}

func (s *Store) persistMessage(threadID string, m models.Message) {
	b, _ := json.Marshal(m)
	if err := s.db.Set(msgKey(threadID, m), b, pebble.Sync); err != nil {
		logger.Error("persist_message_failed", "thread", threadID, "msg", m.ID, "error", err)
	}
}

// CreateThread creates a new thread for first contact. Callers resolve
// identity through the directory, which serializes creation per
// (business, platform, customer) key; the store itself does not check
// for duplicates.
func (s *Store) CreateThread(business, platform, customer, customerName string, createdTS int64) models.Thread {
	ts := &threadState{
		t: models.Thread{
			ID:           utils.GenThreadID(),
			Business:     business,
			Platform:     platform,
			Customer:     customer,
			CustomerName: customerName,
			CreatedTS:    createdTS,
			Version:      1,
		},
		extIDs: make(map[string]string),
	}
	s.mu.Lock()
	s.threads[ts.t.ID] = ts
	s.mu.Unlock()
	s.persistMeta(ts)
	if s.agg != nil {
		s.agg.NoteThreadCreated(business, platform)
	}
	logger.Info("thread_created", "thread", ts.t.ID, "platform", platform, "customer", customer)
	return cloneThread(&ts.t)
}

func (s *Store) state(threadID string) (*threadState, bool) {
	s.mu.RLock()
	ts, ok := s.threads[threadID]
	s.mu.RUnlock()
	return ts, ok
}

// Append assigns identity to the draft and inserts it into the thread in
// (created_ts, id) order. Re-ingesting an inbound draft with a known
// external id returns the stored message unchanged. Appending never
// fails on archived threads.
func (s *Store) Append(threadID string, d models.MessageDraft) (models.Message, error) {
	ts, ok := s.state(threadID)
	if !ok {
		return models.Message{}, fmt.Errorf("append to %s: %w", threadID, models.ErrNotFound)
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if d.Direction == models.DirectionInbound && d.ExternalID != "" {
		if id, dup := ts.extIDs[d.ExternalID]; dup {
			if s.agg != nil {
				s.agg.NoteDedupHit(d.Platform)
			}
			logger.Debug("duplicate_message_ignored", "thread", threadID, "external_id", d.ExternalID)
			for i := range ts.t.Messages {
				if ts.t.Messages[i].ID == id {
					return ts.t.Messages[i], nil
				}
			}
		}
	}

	m := models.Message{
		ID:         utils.GenMessageID(),
		ThreadID:   threadID,
		Direction:  d.Direction,
		Sender:     d.Sender,
		Content:    d.Content,
		Platform:   d.Platform,
		CreatedTS:  d.CreatedTS,
		ExternalID: d.ExternalID,
	}
	if d.Direction == models.DirectionOutbound {
		m.Status = models.DeliveryPending
	}

	insertOrdered(&ts.t.Messages, m)
	ts.t.LastActivityTS = ts.t.Messages[len(ts.t.Messages)-1].CreatedTS
	if d.Direction == models.DirectionInbound {
		ts.t.Unread++
		if m.ExternalID != "" {
			ts.extIDs[m.ExternalID] = m.ID
		}
		if d.CustomerName != "" {
			ts.t.CustomerName = d.CustomerName
		}
	}
	ts.t.Version++
	s.persistMessage(threadID, m)
	s.persistMeta(ts)
	if s.agg != nil {
		s.agg.NoteMessage(ts.t.Business, m.Platform, m.Direction)
	}
	logger.Debug("message_appended", "thread", threadID, "msg", m.ID, "direction", string(m.Direction))
	return m, nil
}

// insertOrdered keeps msgs sorted by (created_ts, id). The common case
// is a plain append; late arrivals are placed by binary search.
func insertOrdered(msgs *[]models.Message, m models.Message) {
	n := len(*msgs)
	if n == 0 || !before(m, (*msgs)[n-1]) {
		*msgs = append(*msgs, m)
		return
	}
	i := sort.Search(n, func(i int) bool { return before(m, (*msgs)[i]) })
	*msgs = append(*msgs, models.Message{})
	copy((*msgs)[i+1:], (*msgs)[i:])
	(*msgs)[i] = m
}

func before(a, b models.Message) bool {
	if a.CreatedTS != b.CreatedTS {
		return a.CreatedTS < b.CreatedTS
	}
	return a.ID < b.ID
}

// Get returns a deep copy of the thread.
func (s *Store) Get(threadID string) (models.Thread, error) {
	ts, ok := s.state(threadID)
	if !ok {
		return models.Thread{}, fmt.Errorf("get %s: %w", threadID, models.ErrNotFound)
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return cloneThread(&ts.t), nil
}

// GetScoped is Get restricted to the caller's business scope. Threads
// outside the scope report not-found rather than leaking existence.
func (s *Store) GetScoped(business, threadID string) (models.Thread, error) {
	t, err := s.Get(threadID)
	if err != nil {
		return models.Thread{}, err
	}
	if t.Business != business {
		return models.Thread{}, fmt.Errorf("get %s: %w", threadID, models.ErrNotFound)
	}
	return t, nil
}

// UpdateFlags applies a partial flag patch and returns the updated
// thread. Flags are independent booleans; archiving does not block
// appends.
func (s *Store) UpdateFlags(threadID string, patch models.FlagPatch) (models.Thread, error) {
	ts, ok := s.state(threadID)
	if !ok {
		return models.Thread{}, fmt.Errorf("update flags on %s: %w", threadID, models.ErrNotFound)
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if patch.ExpectedVersion != nil && *patch.ExpectedVersion != ts.t.Version {
		return models.Thread{}, fmt.Errorf("update flags on %s at version %d (now %d): %w",
			threadID, *patch.ExpectedVersion, ts.t.Version, models.ErrConflict)
	}
	if patch.IsFlagged != nil {
		ts.t.IsFlagged = *patch.IsFlagged
	}
	if patch.IsArchived != nil {
		ts.t.IsArchived = *patch.IsArchived
	}
	ts.t.Version++
	s.persistMeta(ts)
	logger.Info("thread_flags_updated", "thread", threadID, "flagged", ts.t.IsFlagged, "archived", ts.t.IsArchived)
	return cloneThread(&ts.t), nil
}

// MarkRead resets the thread's unread count to zero.
func (s *Store) MarkRead(threadID string) (models.Thread, error) {
	ts, ok := s.state(threadID)
	if !ok {
		return models.Thread{}, fmt.Errorf("mark read on %s: %w", threadID, models.ErrNotFound)
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.t.Unread > 0 {
		if s.agg != nil {
			s.agg.NoteRead(ts.t.Business, ts.t.Unread)
		}
		ts.t.Unread = 0
		ts.t.Version++
		s.persistMeta(ts)
	}
	logger.Debug("thread_marked_read", "thread", threadID)
	return cloneThread(&ts.t), nil
}

// UpdateDeliveryStatus transitions an outbound message's delivery
// status; externalID records the platform-native id when the connector
// reports one. Inbound messages are never touched.
func (s *Store) UpdateDeliveryStatus(threadID, msgID string, status models.DeliveryStatus, externalID string) error {
	ts, ok := s.state(threadID)
	if !ok {
		return fmt.Errorf("update delivery on %s: %w", threadID, models.ErrNotFound)
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for i := range ts.t.Messages {
		m := &ts.t.Messages[i]
		if m.ID != msgID || m.Direction != models.DirectionOutbound {
			continue
		}
		m.Status = status
		if externalID != "" {
			m.ExternalID = externalID
		}
		ts.t.Version++
		s.persistMessage(threadID, *m)
		s.persistMeta(ts)
		logger.Info("delivery_status_updated", "thread", threadID, "msg", msgID, "status", string(status))
		return nil
	}
	return fmt.Errorf("update delivery: message %s: %w", msgID, models.ErrNotFound)
}

// ListEntry pairs a thread summary with its recent message contents for
// search matching by the query engine.
type ListEntry struct {
	Summary models.Summary
	Recent  []string
}

// recentWindow bounds how many trailing messages are exposed for
// content search.
const recentWindow = 10

// Entries returns listing entries for every thread in the business
// scope. Each entry is read under that thread's lock, so every entry is
// internally consistent.
func (s *Store) Entries(business string) []ListEntry {
	s.mu.RLock()
	states := make([]*threadState, 0, len(s.threads))
	for _, ts := range s.threads {
		states = append(states, ts)
	}
	s.mu.RUnlock()

	out := make([]ListEntry, 0, len(states))
	for _, ts := range states {
		ts.mu.Lock()
		if ts.t.Business == business {
			e := ListEntry{Summary: ts.t.Summarize()}
			start := len(ts.t.Messages) - recentWindow
			if start < 0 {
				start = 0
			}
			for _, m := range ts.t.Messages[start:] {
				e.Recent = append(e.Recent, m.Content)
			}
			out = append(out, e)
		}
		ts.mu.Unlock()
	}
	return out
}

// IdleThreads returns ids of unarchived threads in any scope whose last
// activity is older than cutoffTS. Used by the archiver sweep.
func (s *Store) IdleThreads(cutoffTS int64) []string {
	s.mu.RLock()
	states := make([]*threadState, 0, len(s.threads))
	for _, ts := range s.threads {
		states = append(states, ts)
	}
	s.mu.RUnlock()

	var out []string
	for _, ts := range states {
		ts.mu.Lock()
		if !ts.t.IsArchived && ts.t.LastActivityTS > 0 && ts.t.LastActivityTS < cutoffTS {
			out = append(out, ts.t.ID)
		}
		ts.mu.Unlock()
	}
	return out
}

func cloneThread(t *models.Thread) models.Thread {
	out := *t
	out.Messages = append([]models.Message(nil), t.Messages...)
	return out
}
