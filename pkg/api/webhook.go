package api

import (
	"bytes"
	"fmt"

	"github.com/valyala/fasthttp"

	"inboxd/pkg/ingest"
	"inboxd/pkg/logger"
	"inboxd/pkg/normalize"
)

// WebhookServer is the connector-facing fast path. It accepts raw
// payloads on POST /webhooks/{platform}, enqueues them and answers 202;
// normalization happens on the worker pool.
type WebhookServer struct {
	queue  *ingest.Queue
	server *fasthttp.Server
}

// NewWebhookServer builds the listener over q.
func NewWebhookServer(q *ingest.Queue) *WebhookServer {
	ws := &WebhookServer{queue: q}
	ws.server = &fasthttp.Server{
		Handler:            ws.handle,
		Name:               "inboxd-webhook",
		MaxRequestBodySize: 1 << 20,
	}
	return ws
}

// ListenAndServe blocks serving addr.
func (ws *WebhookServer) ListenAndServe(addr string) error {
	logger.Info("webhook_listener_started", "addr", addr)
	return ws.server.ListenAndServe(addr)
}

// Shutdown stops accepting connections.
func (ws *WebhookServer) Shutdown() error {
	return ws.server.Shutdown()
}

var webhookPrefix = []byte("/webhooks/")

func (ws *WebhookServer) handle(ctx *fasthttp.RequestCtx) {
	path := ctx.Path()
	if !bytes.HasPrefix(path, webhookPrefix) {
		writeJSONErr(ctx, fasthttp.StatusNotFound, "not_found", "resource not found")
		return
	}
	if !ctx.IsPost() {
		writeJSONErr(ctx, fasthttp.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	platform := string(path[len(webhookPrefix):])
	if !normalize.KnownPlatform(platform) {
		writeJSONErr(ctx, fasthttp.StatusBadRequest, "validation_error", "unknown platform")
		return
	}
	business := string(ctx.QueryArgs().Peek("business"))
	if business == "" {
		business = "default"
	}
	body := ctx.PostBody()
	if len(body) == 0 {
		writeJSONErr(ctx, fasthttp.StatusBadRequest, "validation_error", "empty payload")
		return
	}
	if !ws.queue.TryEnqueue(platform, business, body) {
		logger.Warn("webhook_queue_full", "platform", platform)
		writeJSONErr(ctx, fasthttp.StatusTooManyRequests, "queue_full", "ingest queue full, retry later")
		return
	}
	ctx.SetStatusCode(fasthttp.StatusAccepted)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"success":true,"message":"accepted"}`)
}

func writeJSONErr(ctx *fasthttp.RequestCtx, status int, code, msg string) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(fmt.Sprintf(`{"success":false,"error":{"code":%q,"message":%q}}`, code, msg))
}
