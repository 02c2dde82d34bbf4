package hub

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"geopresence/domain"
)

var ErrUnknownConnection = errors.New("connection is not registered")

// session is created when a connection is accepted. participant stays nil
// until the connection's first accepted update.
type session struct {
	conn         domain.Connection
	participant  *domain.Participant
	snapshotSent bool
}

// Hub is the connection registry. All session records sit behind one mutex;
// the fan-out in dispatch.go runs inside the same critical section.
type Hub struct {
	sessions map[string]*session
	now      func() time.Time
	mu       sync.Mutex
}

type Option func(*Hub)

// WithClock overrides the time source used to stamp LastSeen.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

func New(opts ...Option) *Hub {
	h := &Hub{
		sessions: make(map[string]*session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Register(conn domain.Connection) {
	h.mu.Lock()
	if _, exists := h.sessions[conn.ID()]; !exists {
		h.sessions[conn.ID()] = &session{conn: conn}
	}
	count := len(h.sessions)
	h.mu.Unlock()

	slog.Info("client connected", "clientId", conn.ID(), "clients", count)
}

// Upsert stores p as the participant of conn, overwriting any previous
// state. first reports whether this is the connection's first accepted
// update.
func (h *Hub) Upsert(conn domain.Connection, p domain.Participant) (first bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, first, err = h.upsertLocked(conn, p)
	return first, err
}

func (h *Hub) upsertLocked(conn domain.Connection, p domain.Participant) (*session, bool, error) {
	s, exists := h.sessions[conn.ID()]
	if !exists {
		return nil, false, ErrUnknownConnection
	}
	first := s.participant == nil
	p.LastSeen = h.now()
	s.participant = &p
	return s, first, nil
}

// Remove drops the session of conn and returns its participant, if any.
// Removing an unknown or already removed connection is a no-op.
func (h *Hub) Remove(conn domain.Connection) (domain.Participant, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, exists := h.removeLocked(conn)
	if !exists || s.participant == nil {
		return domain.Participant{}, false
	}
	return *s.participant, true
}

func (h *Hub) removeLocked(conn domain.Connection) (*session, bool) {
	s, exists := h.sessions[conn.ID()]
	if exists {
		delete(h.sessions, conn.ID())
	}
	return s, exists
}

// Snapshot returns every known participant except the one owned by
// excluding. The order is unspecified.
func (h *Hub) Snapshot(excluding domain.Connection) []domain.Participant {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.snapshotLocked(excluding.ID())
}

func (h *Hub) snapshotLocked(excludingID string) []domain.Participant {
	var out []domain.Participant
	for id, s := range h.sessions {
		if id == excludingID || s.participant == nil {
			continue
		}
		out = append(out, *s.participant)
	}
	return out
}

// Participants returns every known participant.
func (h *Hub) Participants() []domain.Participant {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.snapshotLocked("")
}

func (h *Hub) Stats() (connections, participants int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	connections = len(h.sessions)
	for _, s := range h.sessions {
		if s.participant != nil {
			participants++
		}
	}
	return connections, participants
}

// CloseAll closes every registered connection. Each close runs the
// connection's own disconnect path, so the lock is released first.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]domain.Connection, 0, len(h.sessions))
	for _, s := range h.sessions {
		conns = append(conns, s.conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			slog.Debug("close error", "clientId", conn.ID(), "error", err)
		}
	}
}
