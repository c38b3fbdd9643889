// Package dispatch sends operator replies out through platform
// connectors. A reply is stored pending first, then delivered
// asynchronously; delivery retries with bounded exponential backoff and
// settles the message as sent or failed.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inboxd/pkg/logger"
	"inboxd/pkg/models"
	"inboxd/pkg/stats"
	"inboxd/pkg/store"
	"inboxd/pkg/validation"
)

// Connector delivers one outbound message to its platform and returns
// the platform-native message id.
type Connector interface {
	Send(ctx context.Context, platform, customer, content string) (externalID string, err error)
}

// Archived-thread reply policies.
const (
	PolicyAllow  = "allow"
	PolicyReject = "reject"
	PolicyReopen = "reopen"
)

// Options tunes the dispatcher; zero values take the defaults below.
type Options struct {
	ArchivedReplyPolicy string
	MaxAttempts         int
	BackoffBase         time.Duration
	SenderIdentity      string
}

// Dispatcher owns outbound delivery for one store.
type Dispatcher struct {
	st   *store.Store
	conn Connector
	opts Options
}

// New returns a dispatcher sending through conn.
func New(st *store.Store, conn Connector, opts Options) *Dispatcher {
	if opts.ArchivedReplyPolicy == "" {
		opts.ArchivedReplyPolicy = PolicyAllow
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.SenderIdentity == "" {
		opts.SenderIdentity = "operator"
	}
	return &Dispatcher{st: st, conn: conn, opts: opts}
}

// SendReply validates and stores the reply as pending, then hands it to
// the async delivery loop. The returned message reflects the pending
// state; delivery status settles later.
func (d *Dispatcher) SendReply(ctx context.Context, business, threadID, content string) (models.Message, error) {
	t, err := d.st.GetScoped(business, threadID)
	if err != nil {
		return models.Message{}, err
	}
	if err := validation.ValidateReplyContent(content); err != nil {
		return models.Message{}, err
	}
	if t.IsArchived {
		switch d.opts.ArchivedReplyPolicy {
		case PolicyReject:
			return models.Message{}, fmt.Errorf("%w: thread %s is archived", models.ErrArchived, threadID)
		case PolicyReopen:
			f := false
			if _, err := d.st.UpdateFlags(threadID, models.FlagPatch{IsArchived: &f}); err != nil {
				return models.Message{}, err
			}
		}
	}

	m, err := d.st.Append(threadID, models.MessageDraft{
		Direction: models.DirectionOutbound,
		Sender:    d.opts.SenderIdentity,
		Content:   content,
		Platform:  t.Platform,
		CreatedTS: time.Now().UTC().UnixNano(),
	})
	if err != nil {
		return models.Message{}, err
	}
	logger.Info("reply_queued", "thread", threadID, "msg", m.ID)

	go d.deliver(t.Platform, t.Customer, m)
	return m, nil
}

// deliver runs the retry loop for one message. It always settles the
// delivery status, even when every attempt fails.
func (d *Dispatcher) deliver(platform, customer string, m models.Message) {
	var lastErr error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		extID, err := d.conn.Send(ctx, platform, customer, m.Content)
		cancel()
		if err == nil {
			stats.DispatchAttempts.WithLabelValues("ok").Inc()
			if uerr := d.st.UpdateDeliveryStatus(m.ThreadID, m.ID, models.DeliverySent, extID); uerr != nil {
				logger.Error("delivery_settle_failed", "thread", m.ThreadID, "msg", m.ID, "error", uerr)
			}
			logger.Info("reply_delivered", "thread", m.ThreadID, "msg", m.ID, "attempt", attempt)
			return
		}
		lastErr = err
		stats.DispatchAttempts.WithLabelValues("error").Inc()
		logger.Warn("delivery_attempt_failed", "thread", m.ThreadID, "msg", m.ID, "attempt", attempt, "error", err)
		if attempt < d.opts.MaxAttempts {
			// 500ms, 1s, 2s, ...
			time.Sleep(d.opts.BackoffBase << (attempt - 1))
		}
	}
	stats.DeliveriesFailed.Inc()
	if uerr := d.st.UpdateDeliveryStatus(m.ThreadID, m.ID, models.DeliveryFailed, ""); uerr != nil {
		logger.Error("delivery_settle_failed", "thread", m.ThreadID, "msg", m.ID, "error", uerr)
	}
	logger.Error("reply_delivery_failed", "thread", m.ThreadID, "msg", m.ID, "attempts", d.opts.MaxAttempts,
		"error", fmt.Errorf("%w: %v", models.ErrDeliveryFailed, lastErr))
}

// NopConnector accepts every send and fabricates an external id. Used
// when no connector credentials are configured.
type NopConnector struct{}

// Send implements Connector.
func (NopConnector) Send(_ context.Context, platform, customer, _ string) (string, error) {
	return fmt.Sprintf("nop-%s-%s-%d", platform, strings.ReplaceAll(customer, ":", "-"), time.Now().UnixNano()), nil
}
