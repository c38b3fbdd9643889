// Package suggest produces AI reply suggestions for a thread. The
// gateway never fails a request: provider timeouts and errors degrade
// to an empty suggestion list.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inboxd/pkg/logger"
	"inboxd/pkg/models"
	"inboxd/pkg/stats"
	"inboxd/pkg/store"
)

// Suggester generates reply suggestions from recent thread context.
type Suggester interface {
	Suggest(ctx context.Context, thread models.Thread, window []models.Message) ([]string, error)
}

// Result is the gateway response. Degraded marks an empty list caused
// by provider failure rather than a genuine "nothing to suggest".
type Result struct {
	Suggestions []string `json:"suggestions"`
	ThreadID    string   `json:"thread_id"`
	Version     uint64   `json:"thread_version"`
	Degraded    bool     `json:"degraded,omitempty"`
}

// Options tunes the gateway.
type Options struct {
	Timeout       time.Duration
	ContextWindow int
}

// Gateway coordinates the provider, the cache and the store.
type Gateway struct {
	st    *store.Store
	sug   Suggester
	cache Cache
	opts  Options
}

// New builds a gateway. cache may be nil to disable caching.
func New(st *store.Store, sug Suggester, cache Cache, opts Options) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = 12
	}
	if cache == nil {
		cache = nopCache{}
	}
	return &Gateway{st: st, sug: sug, cache: cache, opts: opts}
}

// GetSuggestions returns suggestions for the thread at its current
// version. Results are cached per (thread, version); any append or flag
// change bumps the version and naturally invalidates the entry.
func (g *Gateway) GetSuggestions(ctx context.Context, business, threadID string) (Result, error) {
	t, err := g.st.GetScoped(business, threadID)
	if err != nil {
		return Result{}, err
	}

	if cached, ok := g.cache.Get(ctx, threadID, t.Version); ok {
		stats.SuggestionResults.WithLabelValues("cache_hit").Inc()
		return Result{Suggestions: cached, ThreadID: threadID, Version: t.Version}, nil
	}

	window := t.Messages
	if len(window) > g.opts.ContextWindow {
		window = window[len(window)-g.opts.ContextWindow:]
	}

	callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()
	suggestions, err := g.sug.Suggest(callCtx, t, window)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, models.ErrExternalTimeout) {
			outcome = "timeout"
		}
		stats.SuggestionResults.WithLabelValues(outcome).Inc()
		logger.Warn("suggestion_degraded", "thread", threadID, "outcome", outcome, "error", err)
		return Result{Suggestions: []string{}, ThreadID: threadID, Version: t.Version, Degraded: true}, nil
	}
	if suggestions == nil {
		suggestions = []string{}
	}

	// only cache results that still describe the thread we read; a
	// concurrent append makes them stale
	if cur, cerr := g.st.GetScoped(business, threadID); cerr == nil && cur.Version == t.Version {
		g.cache.Set(ctx, threadID, t.Version, suggestions)
	}
	stats.SuggestionResults.WithLabelValues("fetched").Inc()
	return Result{Suggestions: suggestions, ThreadID: threadID, Version: t.Version}, nil
}

// StaticSuggester returns canned suggestions; the fallback provider
// when no endpoint is configured.
type StaticSuggester struct{}

// Suggest implements Suggester.
func (StaticSuggester) Suggest(_ context.Context, t models.Thread, window []models.Message) ([]string, error) {
	name := t.CustomerName
	if name == "" {
		name = "there"
	}
	base := []string{
		fmt.Sprintf("Hi %s, thanks for reaching out!", name),
		"Could you share a few more details so we can help?",
	}
	if len(window) > 0 && window[len(window)-1].Direction == models.DirectionInbound {
		base = append(base, "We're looking into this and will get back to you shortly.")
	}
	return base, nil
}
