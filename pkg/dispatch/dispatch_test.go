package dispatch

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

// flakyConnector fails the first failures sends, then succeeds.
type flakyConnector struct {
	failures int32
	calls    atomic.Int32
}

func (c *flakyConnector) Send(_ context.Context, _, _, _ string) (string, error) {
	n := c.calls.Add(1)
	if n <= c.failures {
		return "", errors.New("connector unavailable")
	}
	return "ext-ok", nil
}

func newTestDispatcher(t *testing.T, conn Connector, opts Options) (*Dispatcher, *store.Store, models.Thread) {
	t.Helper()
	st, err := store.Open(t.TempDir(), stats.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	opts.BackoffBase = time.Millisecond
	th := st.CreateThread("biz", "instagram", "cust-1", "Sarah", 100)
	return New(st, conn, opts), st, th
}

func waitForStatus(t *testing.T, st *store.Store, threadID, msgID string, want models.DeliveryStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		th, err := st.Get(threadID)
		if err != nil {
			return false
		}
		for _, m := range th.Messages {
			if m.ID == msgID {
				return m.Status == want
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSendReplyAppendsPendingThenSent(t *testing.T) {
	conn := &flakyConnector{}
	d, st, th := newTestDispatcher(t, conn, Options{})

	m, err := d.SendReply(context.Background(), "biz", th.ID, "thanks for reaching out")
	require.NoError(t, err)
	assert.Equal(t, models.DirectionOutbound, m.Direction)
	assert.Equal(t, models.DeliveryPending, m.Status)

	waitForStatus(t, st, th.ID, m.ID, models.DeliverySent)
	got, err := st.Get(th.ID)
	require.NoError(t, err)
	assert.Equal(t, "ext-ok", got.Messages[len(got.Messages)-1].ExternalID)
}

func TestSendReplyRetriesThenSucceeds(t *testing.T) {
	conn := &flakyConnector{failures: 2}
	d, st, th := newTestDispatcher(t, conn, Options{MaxAttempts: 3})

	m, err := d.SendReply(context.Background(), "biz", th.ID, "retry me")
	require.NoError(t, err)
	waitForStatus(t, st, th.ID, m.ID, models.DeliverySent)
	assert.Equal(t, int32(3), conn.calls.Load())
}

func TestSendReplyExhaustsRetriesAndFails(t *testing.T) {
	conn := &flakyConnector{failures: 100}
	d, st, th := newTestDispatcher(t, conn, Options{MaxAttempts: 3})

	m, err := d.SendReply(context.Background(), "biz", th.ID, "doomed")
	require.NoError(t, err)
	waitForStatus(t, st, th.ID, m.ID, models.DeliveryFailed)
	assert.Equal(t, int32(3), conn.calls.Load())
}

func TestSendReplyValidatesContent(t *testing.T) {
	d, _, th := newTestDispatcher(t, &flakyConnector{}, Options{})

	_, err := d.SendReply(context.Background(), "biz", th.ID, "   ")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSendReplyUnknownThreadIsNotFound(t *testing.T) {
	d, _, _ := newTestDispatcher(t, &flakyConnector{}, Options{})

	_, err := d.SendReply(context.Background(), "biz", "th-nope", "hello")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSendReplyOutOfScopeIsNotFound(t *testing.T) {
	d, _, th := newTestDispatcher(t, &flakyConnector{}, Options{})

	_, err := d.SendReply(context.Background(), "other-biz", th.ID, "hello")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestArchivedReplyPolicies(t *testing.T) {
	t.Run("reject", func(t *testing.T) {
		d, st, th := newTestDispatcher(t, &flakyConnector{}, Options{ArchivedReplyPolicy: PolicyReject})
		tr := true
		_, err := st.UpdateFlags(th.ID, models.FlagPatch{IsArchived: &tr})
		require.NoError(t, err)

		_, err = d.SendReply(context.Background(), "biz", th.ID, "hello")
		assert.ErrorIs(t, err, models.ErrArchived)
	})

	t.Run("reopen", func(t *testing.T) {
		d, st, th := newTestDispatcher(t, &flakyConnector{}, Options{ArchivedReplyPolicy: PolicyReopen})
		tr := true
		_, err := st.UpdateFlags(th.ID, models.FlagPatch{IsArchived: &tr})
		require.NoError(t, err)

		_, err = d.SendReply(context.Background(), "biz", th.ID, "hello")
		require.NoError(t, err)
		got, err := st.Get(th.ID)
		require.NoError(t, err)
		assert.False(t, got.IsArchived)
	})

	t.Run("allow", func(t *testing.T) {
		d, st, th := newTestDispatcher(t, &flakyConnector{}, Options{})
		tr := true
		_, err := st.UpdateFlags(th.ID, models.FlagPatch{IsArchived: &tr})
		require.NoError(t, err)

		m, err := d.SendReply(context.Background(), "biz", th.ID, "hello")
		require.NoError(t, err)
		waitForStatus(t, st, th.ID, m.ID, models.DeliverySent)
		got, err := st.Get(th.ID)
		require.NoError(t, err)
		assert.True(t, got.IsArchived)
	})
}
