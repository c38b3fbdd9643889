// Package directory resolves customer identities to threads. Each
// distinct (business, platform, customer) triple owns exactly one
// thread; concurrent first-contact resolution for the same triple is
// serialized by a per-key lock so only one thread is ever created.
package directory

import (
	"strings"
	"sync"

	"inboxd/pkg/logger"
	"inboxd/pkg/models"
	"inboxd/pkg/store"
)

// Directory is the identity index over the thread store.
type Directory struct {
	st *store.Store

	mu    sync.RWMutex
	index map[string]string // ident key -> thread id

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// New builds a directory over st, loading persisted bindings.
func New(st *store.Store) (*Directory, error) {
	idx, err := st.LoadIdents()
	if err != nil {
		return nil, err
	}
	logger.Info("directory_loaded", "identities", len(idx))
	return &Directory{
		st:    st,
		index: idx,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

func identKey(business, platform, customer string) string {
	return strings.Join([]string{business, platform, customer}, ":")
}

// keyLock returns the mutex for one identity key, creating it on first
// use. Locks are never removed; the key space is bounded by the number
// of distinct customers.
func (d *Directory) keyLock(key string) *sync.Mutex {
	d.lockMu.Lock()
	defer d.lockMu.Unlock()
	l, ok := d.locks[key]
	if !ok {
		l = &sync.Mutex{}
		d.locks[key] = l
	}
	return l
}

// Lookup returns the thread id bound to the identity, if any.
func (d *Directory) Lookup(business, platform, customer string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.index[identKey(business, platform, customer)]
	return id, ok
}

// ResolveOrCreate returns the thread for the identity, creating it on
// first contact. created reports whether this call made the thread.
// Two goroutines racing on the same identity both get the same thread.
func (d *Directory) ResolveOrCreate(business, platform, customer, customerName string, ts int64) (threadID string, created bool) {
	key := identKey(business, platform, customer)

	d.mu.RLock()
	id, ok := d.index[key]
	d.mu.RUnlock()
	if ok {
		return id, false
	}

	l := d.keyLock(key)
	l.Lock()
	defer l.Unlock()

	// re-check: a racer may have created the thread while we waited
	d.mu.RLock()
	id, ok = d.index[key]
	d.mu.RUnlock()
	if ok {
		return id, false
	}

	t := d.st.CreateThread(business, platform, customer, customerName, ts)
	d.mu.Lock()
	d.index[key] = t.ID
	d.mu.Unlock()
	d.st.PutIdent(key, t.ID)
	logger.Info("identity_bound", "business", business, "platform", platform, "customer", customer, "thread", t.ID)
	return t.ID, true
}

// Ingest resolves the draft's identity and appends it to the resolved
// thread. It is the single entry point the ingest workers use.
func (d *Directory) Ingest(business string, draft models.MessageDraft) (models.Message, error) {
	threadID, _ := d.ResolveOrCreate(business, draft.Platform, draft.Sender, draft.CustomerName, draft.CreatedTS)
	return d.st.Append(threadID, draft)
}
