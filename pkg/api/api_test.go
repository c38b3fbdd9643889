package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxd/pkg/config"
	"inboxd/pkg/directory"
	"inboxd/pkg/dispatch"
	"inboxd/pkg/models"
	"inboxd/pkg/query"
	"inboxd/pkg/stats"
	"inboxd/pkg/store"
	"inboxd/pkg/suggest"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestAPI(t *testing.T) (*httptest.Server, *directory.Directory, *store.Store) {
	t.Helper()
	agg := stats.New()
	st, err := store.Open(t.TempDir(), agg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	dir, err := directory.New(st)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Security.APIKeys = map[string]string{"key-a": "biz-a", "key-b": "biz-b"}
	cfg.Security.AllowUnauth = false

	disp := dispatch.New(st, dispatch.NopConnector{}, dispatch.Options{BackoffBase: time.Millisecond})
	sugg := suggest.New(st, suggest.StaticSuggester{}, suggest.NewMemoryCache(), suggest.Options{})
	srv := NewServer(st, query.New(st), disp, sugg, agg, cfg)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, dir, st
}

func doReq(t *testing.T, method, url, apiKey string, body []byte) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set("X-Business-Key", apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp, env
}

func seedConversation(t *testing.T, dir *directory.Directory) string {
	t.Helper()
	for i, content := range []string{"hi, is the blue jacket in stock?", "size M please", "thanks!"} {
		_, err := dir.Ingest("biz-a", models.MessageDraft{
			Direction:    models.DirectionInbound,
			Sender:       "ig-sarah",
			Content:      content,
			Platform:     "instagram",
			CreatedTS:    int64(1000 + i),
			ExternalID:   string(rune('a' + i)),
			CustomerName: "Sarah Lin",
		})
		require.NoError(t, err)
	}
	id, ok := dir.Lookup("biz-a", "instagram", "ig-sarah")
	require.True(t, ok)
	return id
}

func TestListAndGetThread(t *testing.T) {
	ts, dir, _ := newTestAPI(t)
	id := seedConversation(t, dir)

	resp, env := doReq(t, http.MethodGet, ts.URL+"/v1/threads", "key-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)
	var page struct {
		Threads []models.Summary `json:"threads"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Threads, 1)
	assert.Equal(t, id, page.Threads[0].ID)
	assert.Equal(t, "Sarah Lin", page.Threads[0].CustomerName)
	assert.Equal(t, 3, page.Threads[0].Unread)
	assert.Equal(t, "thanks!", page.Threads[0].LastContent)

	resp, env = doReq(t, http.MethodGet, ts.URL+"/v1/threads/"+id, "key-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var th models.Thread
	require.NoError(t, json.Unmarshal(env.Data, &th))
	assert.Len(t, th.Messages, 3)
}

func TestSearchFindsCustomer(t *testing.T) {
	ts, dir, _ := newTestAPI(t)
	seedConversation(t, dir)

	_, env := doReq(t, http.MethodGet, ts.URL+"/v1/threads?search=Sarah", "key-a", nil)
	var page struct {
		Threads []models.Summary `json:"threads"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Threads, 1)

	_, env = doReq(t, http.MethodGet, ts.URL+"/v1/threads?search=nobody", "key-a", nil)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Empty(t, page.Threads)
}

func TestScopeIsolation(t *testing.T) {
	ts, dir, _ := newTestAPI(t)
	id := seedConversation(t, dir)

	// other business sees an empty inbox and cannot address the thread
	_, env := doReq(t, http.MethodGet, ts.URL+"/v1/threads", "key-b", nil)
	var page struct {
		Threads []models.Summary `json:"threads"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Empty(t, page.Threads)

	resp, env := doReq(t, http.MethodGet, ts.URL+"/v1/threads/"+id, "key-b", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)

	// unknown API key is rejected the same way
	resp, _ = doReq(t, http.MethodGet, ts.URL+"/v1/threads", "key-unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNotFoundVsMethodNotAllowed(t *testing.T) {
	ts, _, _ := newTestAPI(t)

	resp, env := doReq(t, http.MethodGet, ts.URL+"/v1/nonexistent", "key-a", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)

	resp, env = doReq(t, http.MethodDelete, ts.URL+"/v1/threads", "key-a", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "method_not_allowed", env.Error.Code)
}

func TestReplyFlow(t *testing.T) {
	ts, dir, st := newTestAPI(t)
	id := seedConversation(t, dir)

	resp, env := doReq(t, http.MethodPost, ts.URL+"/v1/threads/"+id+"/reply", "key-a",
		[]byte(`{"content": "We have it in stock!"}`))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.True(t, env.Success)
	var m models.Message
	require.NoError(t, json.Unmarshal(env.Data, &m))
	assert.Equal(t, models.DirectionOutbound, m.Direction)

	require.Eventually(t, func() bool {
		th, err := st.Get(id)
		if err != nil {
			return false
		}
		last := th.Messages[len(th.Messages)-1]
		return last.Status == models.DeliverySent
	}, 2*time.Second, 5*time.Millisecond)

	// empty content is a validation error
	resp, env = doReq(t, http.MethodPost, ts.URL+"/v1/threads/"+id+"/reply", "key-a",
		[]byte(`{"content": "  "}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Code)
}

func TestMarkReadAndFlags(t *testing.T) {
	ts, dir, _ := newTestAPI(t)
	id := seedConversation(t, dir)

	resp, env := doReq(t, http.MethodPost, ts.URL+"/v1/threads/"+id+"/read", "key-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var s models.Summary
	require.NoError(t, json.Unmarshal(env.Data, &s))
	assert.Equal(t, 0, s.Unread)

	resp, env = doReq(t, http.MethodPatch, ts.URL+"/v1/threads/"+id+"/flags", "key-a",
		[]byte(`{"is_flagged": true}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &s))
	assert.True(t, s.IsFlagged)
	assert.False(t, s.IsArchived)

	// empty patch is rejected
	resp, _ = doReq(t, http.MethodPatch, ts.URL+"/v1/threads/"+id+"/flags", "key-a", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSuggestionsEndpoint(t *testing.T) {
	ts, dir, _ := newTestAPI(t)
	id := seedConversation(t, dir)

	resp, env := doReq(t, http.MethodGet, ts.URL+"/v1/threads/"+id+"/suggestions", "key-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res suggest.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.NotEmpty(t, res.Suggestions)
	assert.False(t, res.Degraded)
}

func TestStatsEndpoint(t *testing.T) {
	ts, dir, _ := newTestAPI(t)
	seedConversation(t, dir)

	resp, env := doReq(t, http.MethodGet, ts.URL+"/v1/stats", "key-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap models.StatsSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, int64(3), snap.TotalMessages)
	assert.Equal(t, int64(1), snap.TotalThreads)
	assert.Equal(t, int64(3), snap.ByPlatform["instagram"])
}

func TestHealthz(t *testing.T) {
	ts, _, _ := newTestAPI(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
