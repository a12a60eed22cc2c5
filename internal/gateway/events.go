package gateway

import (
	"errors"
	"io"
	"net/http"

	"filebot/internal/bot"
	"filebot/internal/intent"
)

const maxEventBody = 64 << 10

// Events accepts one chat event and returns the messages to deliver.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	event, err := intent.Decode(body)
	if errors.Is(err, intent.ErrUnknownEvent) {
		respondError(w, http.StatusBadRequest, "unknown event type")
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "malformed event")
		return
	}

	notifications, err := h.bot.Handle(r.Context(), event)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "event handling failed")
		return
	}
	if notifications == nil {
		notifications = []bot.Notification{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}
