// Package query serves thread listings: filtering, search, ordering and
// cursor pagination over a point-in-time snapshot of the store.
package query

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"inboxd/pkg/models"
	"inboxd/pkg/store"
)

// Params narrows and pages a listing. Zero values mean "no filter".
type Params struct {
	Platform string
	Search   string
	Flagged  *bool
	Archived *bool
	Cursor   string
	Limit    int
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Page is one listing page. NextCursor is empty when the listing is
// exhausted; an empty Threads slice is a valid page, not an error.
type Page struct {
	Threads    []models.Summary `json:"threads"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// Engine answers listing queries for one store.
type Engine struct {
	st *store.Store
}

// New returns an engine over st.
func New(st *store.Store) *Engine {
	return &Engine{st: st}
}

// List returns one page of the business's threads ordered by last
// activity, newest first, thread id descending on ties. The snapshot is
// taken before filtering, so a mutation mid-request never yields a
// half-updated row.
func (e *Engine) List(business string, p Params) (Page, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	var afterTS int64
	var afterID string
	if p.Cursor != "" {
		ts, id, err := decodeCursor(p.Cursor)
		if err != nil {
			return Page{}, err
		}
		afterTS, afterID = ts, id
	}

	entries := e.st.Entries(business)
	matched := entries[:0]
	for _, en := range entries {
		if matches(en, p) {
			matched = append(matched, en)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i].Summary, matched[j].Summary
		if a.LastActivityTS != b.LastActivityTS {
			return a.LastActivityTS > b.LastActivityTS
		}
		return a.ID > b.ID
	})

	page := Page{Threads: []models.Summary{}}
	for _, en := range matched {
		s := en.Summary
		if p.Cursor != "" && !afterCursor(s, afterTS, afterID) {
			continue
		}
		if len(page.Threads) == limit {
			page.NextCursor = encodeCursor(page.Threads[limit-1])
			break
		}
		page.Threads = append(page.Threads, s)
	}
	return page, nil
}

// afterCursor reports whether s sorts strictly after the cursor position
// in the listing order.
func afterCursor(s models.Summary, ts int64, id string) bool {
	if s.LastActivityTS != ts {
		return s.LastActivityTS < ts
	}
	return s.ID < id
}

func matches(en store.ListEntry, p Params) bool {
	s := en.Summary
	if p.Platform != "" && s.Platform != p.Platform {
		return false
	}
	if p.Flagged != nil && s.IsFlagged != *p.Flagged {
		return false
	}
	if p.Archived != nil && s.IsArchived != *p.Archived {
		return false
	}
	if p.Search != "" {
		needle := strings.ToLower(p.Search)
		if strings.Contains(strings.ToLower(s.CustomerName), needle) {
			return true
		}
		if strings.Contains(strings.ToLower(s.Customer), needle) {
			return true
		}
		for _, c := range en.Recent {
			if strings.Contains(strings.ToLower(c), needle) {
				return true
			}
		}
		return false
	}
	return true
}

func encodeCursor(s models.Summary) string {
	return base64.URLEncoding.EncodeToString([]byte(fmt.Sprintf("%d|%s", s.LastActivityTS, s.ID)))
}

func decodeCursor(c string) (int64, string, error) {
	raw, err := base64.URLEncoding.DecodeString(c)
	if err != nil {
		return 0, "", fmt.Errorf("%w: malformed cursor", models.ErrValidation)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("%w: malformed cursor", models.ErrValidation)
	}
	var ts int64
	if _, err := fmt.Sscanf(parts[0], "%d", &ts); err != nil {
		return 0, "", fmt.Errorf("%w: malformed cursor", models.ErrValidation)
	}
	return ts, parts[1], nil
}
