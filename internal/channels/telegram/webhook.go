package telegram

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/camomilehq/roombot/pkg/logging"
)

// UpdateHandler processes a single inbound update after the webhook
// request has already been acknowledged.
type UpdateHandler func(ctx context.Context, update Update)

// WebhookHandler accepts inbound Telegram webhook calls.
type WebhookHandler struct {
	onUpdate UpdateHandler
	logger   *logging.Logger
}

func NewWebhookHandler(onUpdate UpdateHandler, logger *logging.Logger) *WebhookHandler {
	if onUpdate == nil {
		panic("telegram: update handler is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{onUpdate: onUpdate, logger: logger}
}

// HandleInbound acknowledges the webhook immediately and processes the
// update off the request goroutine. Telegram retries webhook deliveries
// on non-2xx responses, so malformed payloads are logged and dropped
// rather than rejected.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	var update Update
	err := json.NewDecoder(r.Body).Decode(&update)

	w.WriteHeader(http.StatusOK)

	if err != nil {
		h.logger.Warn("telegram webhook: invalid update payload", "error", err)
		return
	}

	go h.onUpdate(context.Background(), update)
}
