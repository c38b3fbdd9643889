package suggest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxd/pkg/models"
	"inboxd/pkg/stats"
	"inboxd/pkg/store"
)

type stubSuggester struct {
	calls       atomic.Int32
	suggestions []string
	err         error
	delay       time.Duration
}

func (s *stubSuggester) Suggest(ctx context.Context, _ models.Thread, _ []models.Message) ([]string, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.suggestions, nil
}

func newTestGateway(t *testing.T, sug Suggester, opts Options) (*Gateway, *store.Store, models.Thread) {
	t.Helper()
	st, err := store.Open(t.TempDir(), stats.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	th := st.CreateThread("biz", "instagram", "cust-1", "Sarah", 100)
	_, err = st.Append(th.ID, models.MessageDraft{
		Direction:  models.DirectionInbound,
		Sender:     "cust-1",
		Content:    "do you ship abroad?",
		Platform:   "instagram",
		CreatedTS:  200,
		ExternalID: "e1",
	})
	require.NoError(t, err)
	return New(st, sug, NewMemoryCache(), opts), st, th
}

func TestGetSuggestionsCachesPerVersion(t *testing.T) {
	sug := &stubSuggester{suggestions: []string{"Yes we do!"}}
	g, st, th := newTestGateway(t, sug, Options{})

	r1, err := g.GetSuggestions(context.Background(), "biz", th.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Yes we do!"}, r1.Suggestions)
	assert.False(t, r1.Degraded)

	// second call at the same version hits the cache
	r2, err := g.GetSuggestions(context.Background(), "biz", th.ID)
	require.NoError(t, err)
	assert.Equal(t, r1.Suggestions, r2.Suggestions)
	assert.Equal(t, int32(1), sug.calls.Load())

	// a new message bumps the version and invalidates the entry
	_, err = st.Append(th.ID, models.MessageDraft{
		Direction:  models.DirectionInbound,
		Sender:     "cust-1",
		Content:    "hello?",
		Platform:   "instagram",
		CreatedTS:  300,
		ExternalID: "e2",
	})
	require.NoError(t, err)
	_, err = g.GetSuggestions(context.Background(), "biz", th.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), sug.calls.Load())
}

func TestGetSuggestionsDegradesOnProviderError(t *testing.T) {
	sug := &stubSuggester{err: errors.New("model overloaded")}
	g, _, th := newTestGateway(t, sug, Options{})

	r, err := g.GetSuggestions(context.Background(), "biz", th.ID)
	require.NoError(t, err)
	assert.True(t, r.Degraded)
	assert.NotNil(t, r.Suggestions)
	assert.Empty(t, r.Suggestions)
}

func TestGetSuggestionsDegradesOnTimeout(t *testing.T) {
	sug := &stubSuggester{suggestions: []string{"late"}, delay: 200 * time.Millisecond}
	g, _, th := newTestGateway(t, sug, Options{Timeout: 10 * time.Millisecond})

	start := time.Now()
	r, err := g.GetSuggestions(context.Background(), "biz", th.ID)
	require.NoError(t, err)
	assert.True(t, r.Degraded)
	assert.Empty(t, r.Suggestions)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestGetSuggestionsUnknownThread(t *testing.T) {
	g, _, _ := newTestGateway(t, &stubSuggester{}, Options{})
	_, err := g.GetSuggestions(context.Background(), "biz", "th-missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = g.GetSuggestions(context.Background(), "other-biz", "th-missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryCacheKeepsLatestVersionOnly(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	c.Set(ctx, "th-1", 3, []string{"a"})
	c.Set(ctx, "th-1", 5, []string{"b"})
	// stale write after a newer one is dropped
	c.Set(ctx, "th-1", 4, []string{"stale"})

	_, ok := c.Get(ctx, "th-1", 3)
	assert.False(t, ok)
	got, ok := c.Get(ctx, "th-1", 5)
	assert.True(t, ok)
	assert.Equal(t, []string{"b"}, got)
}

func TestStaticSuggesterAlwaysOffersSomething(t *testing.T) {
	out, err := StaticSuggester{}.Suggest(context.Background(), models.Thread{CustomerName: "Sarah"}, []models.Message{
		{Direction: models.DirectionInbound, Content: "hi"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Contains(t, out[0], "Sarah")
}
