package store

import (
	"bytes"

	"github.com/cockroachdb/pebble"

	"inboxd/pkg/logger"
)

// Identity keys map (business, platform, customer) to a thread id so
// the directory survives restarts. The directory owns the in-memory
// index; the store only persists it.

const identPrefix = "ident:"

// PutIdent persists one identity binding.
func (s *Store) PutIdent(key, threadID string) {
	if err := s.db.Set([]byte(identPrefix+key), []byte(threadID), pebble.Sync); err != nil {
		logger.Error("persist_ident_failed", "key", key, "error", err)
	}
}

// LoadIdents returns all persisted identity bindings.
func (s *Store) LoadIdents() (map[string]string, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make(map[string]string)
	prefix := []byte(identPrefix)
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		out[string(iter.Key()[len(prefix):])] = string(iter.Value())
	}
	return out, iter.Error()
}
