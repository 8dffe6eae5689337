package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/camomilehq/roombot/internal/assistant"
	"github.com/camomilehq/roombot/pkg/logging"
)

// Handler exposes the conversation service over HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates the /api/message handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type messageRequest struct {
	Input   assistant.Input   `json:"input"`
	Context assistant.Context `json:"context"`
}

// PostMessage handles POST /api/message. The response body is the NLU
// response after action dispatch, returned as-is.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	resp, err := h.svc.GetResponse(r.Context(), req.Input, req.Context)
	if err != nil {
		status := http.StatusInternalServerError
		var statusErr *assistant.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode > 0 {
			status = statusErr.StatusCode
		}
		h.logger.Error("conversation: turn failed", "error", err)
		writeJSON(w, status, map[string]string{"message": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
