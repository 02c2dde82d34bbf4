package hub

import (
	"fmt"
	"log/slog"

	"geopresence/domain"
	"geopresence/protocol"
)

// Publish records p as the state of conn and fans it out. On the
// connection's first accepted update it is sent the other participants
// first (nothing when there are none); then every other open connection
// receives a user_update. The sender never gets its own update back.
func (h *Hub) Publish(conn domain.Connection, p domain.Participant) error {
	update, err := protocol.Encode(protocol.UserUpdate{User: protocol.UserFrom(p)})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s, _, err := h.upsertLocked(conn, p)
	if err != nil {
		return fmt.Errorf("publish %s: %w", conn.ID(), err)
	}

	if !s.snapshotSent {
		s.snapshotSent = true
		if others := h.snapshotLocked(conn.ID()); len(others) > 0 {
			users := make([]protocol.User, 0, len(others))
			for _, o := range others {
				users = append(users, protocol.UserFrom(o))
			}
			data, err := protocol.Encode(protocol.AllUsers{Users: users})
			if err != nil {
				return err
			}
			deliver(conn, data)
		}
	}

	h.broadcastLocked(conn.ID(), update)
	return nil
}

// Disconnect removes conn and tells everyone left which participant went
// away. Repeated calls for the same connection broadcast nothing.
func (h *Hub) Disconnect(conn domain.Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, exists := h.removeLocked(conn)
	if !exists {
		return
	}
	slog.Info("client disconnected", "clientId", conn.ID(), "clients", len(h.sessions))
	if s.participant == nil {
		return
	}

	data, err := protocol.Encode(protocol.UserDisconnected{UUID: s.participant.ID})
	if err != nil {
		slog.Warn("marshal error", "clientId", conn.ID(), "error", err)
		return
	}
	h.broadcastLocked(conn.ID(), data)
}

func (h *Hub) broadcastLocked(senderID string, data []byte) {
	for id, s := range h.sessions {
		if id == senderID {
			continue
		}
		deliver(s.conn, data)
	}
}

// deliver is best effort: a recipient that is closed or has a full send
// buffer misses this event.
func deliver(conn domain.Connection, data []byte) {
	if err := conn.Send(data); err != nil {
		slog.Debug("skipped recipient", "clientId", conn.ID(), "error", err)
	}
}
