package protocol

import (
	"log/slog"

	"geopresence/domain"
)

type Handler struct {
	dispatcher domain.Dispatcher
}

func NewHandler(d domain.Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// Handle processes one inbound message. A rejected payload is answered
// with an error message to the sender alone and never reaches the registry.
func (h *Handler) Handle(conn domain.Connection, data []byte) {
	update, err := DecodeStateUpdate(data)
	if err != nil {
		slog.Warn("invalid message", "clientId", conn.ID(), "error", err)
		h.reject(conn, err)
		return
	}

	if err := h.dispatcher.Publish(conn, update.Participant()); err != nil {
		slog.Warn("publish error", "clientId", conn.ID(), "uuid", update.UUID, "error", err)
	}
}

func (h *Handler) Disconnect(conn domain.Connection) {
	h.dispatcher.Disconnect(conn)
}

func (h *Handler) reject(conn domain.Connection, cause error) {
	resp, err := Encode(Error{Message: cause.Error()})
	if err != nil {
		slog.Warn("marshal error", "clientId", conn.ID(), "error", err)
		return
	}
	if err := conn.Send(resp); err != nil {
		slog.Debug("rejection not delivered", "clientId", conn.ID(), "error", err)
	}
}
