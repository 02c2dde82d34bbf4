// Package client tracks one participant's side of the presence protocol:
// its own identity, the connection lifecycle and a local view of everyone
// else built from the messages the server sends.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"geopresence/domain"
	"geopresence/protocol"
)

const writeWait = 10 * time.Second

var (
	ErrNotOpen        = errors.New("session is not open")
	ErrAlreadyStarted = errors.New("session already connecting or closed")
)

type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Session struct {
	id     string
	name   string
	dialer *websocket.Dialer

	onChange func([]Entry)
	onError  func(string)

	mu      sync.Mutex
	state   State
	dialing bool
	self    *domain.Participant
	others  map[string]domain.Participant
	conn    *websocket.Conn
	done    chan struct{}

	writeMu sync.Mutex

	// callbackMu serializes OnChange and OnError, which fire from both the
	// read loop and the caller's goroutine.
	callbackMu sync.Mutex
}

type Option func(*Session)

// WithID keeps a previously used identifier instead of generating one.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

// OnChange registers a callback that receives the sorted view after every
// change to it. Callbacks never run concurrently with each other and must
// not call UpdatePosition or Close.
func OnChange(fn func([]Entry)) Option {
	return func(s *Session) { s.onChange = fn }
}

// OnError registers a callback for rejection notices from the server.
func OnError(fn func(string)) Option {
	return func(s *Session) { s.onError = fn }
}

func New(name string, opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		name:   name,
		dialer: websocket.DefaultDialer,
		others: make(map[string]domain.Participant),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Name() string { return s.name }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session reaches StateClosed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Connect dials url and, on success, moves the session to StateOpen and
// starts reading server messages. A session connects at most once; a
// failed dial leaves it closed.
func (s *Session) Connect(ctx context.Context, url string) error {
	s.mu.Lock()
	if s.state != StateConnecting || s.dialing {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.dialing = true
	s.mu.Unlock()

	conn, _, err := s.dialer.DialContext(ctx, url, nil)
	if err != nil {
		s.finish()
		return fmt.Errorf("dial %s: %w", url, err)
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		conn.Close()
		return ErrNotOpen
	}
	s.conn = conn
	s.state = StateOpen
	s.mu.Unlock()

	slog.Debug("session open", "uuid", s.id, "url", url)
	go s.readLoop(conn)
	return nil
}

// UpdatePosition sends the session's current state to the server and
// records it locally as the self entry. Every call is sent; nothing is
// coalesced.
func (s *Session) UpdatePosition(lat, lng float64) error {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return ErrNotOpen
	}
	conn := s.conn
	s.mu.Unlock()

	update := protocol.StateUpdate{UUID: s.id, UserName: s.name, Lat: lat, Lng: lng}
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encode position: %w", err)
	}

	// The self entry is recorded under writeMu so it always matches the
	// last frame written.
	s.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err = conn.WriteMessage(websocket.TextMessage, data); err == nil {
		self := update.Participant()
		self.LastSeen = time.Now()
		s.mu.Lock()
		s.self = &self
		s.mu.Unlock()
	}
	s.writeMu.Unlock()
	if err != nil {
		s.finish()
		return fmt.Errorf("send position: %w", err)
	}

	s.notify()
	return nil
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() error {
	s.finish()
	return nil
}

func (s *Session) readLoop(conn *websocket.Conn) {
	defer s.finish()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("session read error", "uuid", s.id, "error", err)
			}
			return
		}

		msg, err := protocol.DecodeServerMessage(data)
		if err != nil {
			slog.Warn("ignored server message", "uuid", s.id, "error", err)
			continue
		}
		s.apply(msg)
	}
}

// apply reconciles one server message into the local view.
func (s *Session) apply(msg protocol.ServerMessage) {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return
	}

	switch m := msg.(type) {
	case protocol.AllUsers:
		for _, u := range m.Users {
			s.mergeLocked(u)
		}
	case protocol.UserUpdate:
		s.mergeLocked(m.User)
	case protocol.UserDisconnected:
		delete(s.others, m.UUID)
	case protocol.Error:
		s.mu.Unlock()
		slog.Warn("update rejected", "uuid", s.id, "message", m.Message)
		if s.onError != nil {
			s.callbackMu.Lock()
			s.onError(m.Message)
			s.callbackMu.Unlock()
		}
		return
	}
	s.mu.Unlock()
	s.notify()
}

// mergeLocked inserts or overwrites one participant. The self entry is
// kept from local updates, so server copies of it are ignored.
func (s *Session) mergeLocked(u protocol.User) {
	if u.UUID == s.id {
		return
	}
	p := u.Participant()
	p.LastSeen = time.Now()
	s.others[u.UUID] = p
}

func (s *Session) finish() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	conn := s.conn
	clear(s.others)
	close(s.done)
	s.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	}
	slog.Debug("session closed", "uuid", s.id)
	s.notify()
}

func (s *Session) notify() {
	if s.onChange == nil {
		return
	}
	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()
	s.onChange(s.View())
}
