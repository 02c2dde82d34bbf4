package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"geopresence/domain"
)

const (
	TypeUserUpdate       = "user_update"
	TypeAllUsers         = "all_users"
	TypeUserDisconnected = "user_disconnected"
	TypeError            = "error"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrIncomplete  = errors.New("incomplete data: uuid, userName, lat and lng are required")
	ErrUnknownType = errors.New("unknown message type")
)

// User is the wire form of a participant.
type User struct {
	UUID     string  `json:"uuid"`
	UserName string  `json:"userName"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

func UserFrom(p domain.Participant) User {
	return User{UUID: p.ID, UserName: p.DisplayName, Lat: p.Lat, Lng: p.Lng}
}

func (u User) Participant() domain.Participant {
	return domain.Participant{ID: u.UUID, DisplayName: u.UserName, Lat: u.Lat, Lng: u.Lng}
}

// StateUpdate is the only client to server message.
type StateUpdate struct {
	UUID     string
	UserName string
	Lat      float64
	Lng      float64
}

func (s StateUpdate) Participant() domain.Participant {
	return domain.Participant{ID: s.UUID, DisplayName: s.UserName, Lat: s.Lat, Lng: s.Lng}
}

func (s StateUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal(User{UUID: s.UUID, UserName: s.UserName, Lat: s.Lat, Lng: s.Lng})
}

// DecodeStateUpdate parses and validates an inbound payload. A payload of
// the wrong shape wraps ErrMalformed; one missing a field, carrying an
// empty identifier or name, or a non-numeric coordinate wraps ErrIncomplete.
// Keys match exactly; encoding/json's case-insensitive field matching would
// let "UUID" stand in for "uuid".
func DecodeStateUpdate(data []byte) (StateUpdate, error) {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "{") {
		return StateUpdate{}, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return StateUpdate{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var update StateUpdate
	if err := requiredField(fields, "uuid", &update.UUID); err != nil {
		return StateUpdate{}, err
	}
	if err := requiredField(fields, "userName", &update.UserName); err != nil {
		return StateUpdate{}, err
	}
	if err := requiredField(fields, "lat", &update.Lat); err != nil {
		return StateUpdate{}, err
	}
	if err := requiredField(fields, "lng", &update.Lng); err != nil {
		return StateUpdate{}, err
	}
	return update, nil
}

// requiredField decodes fields[key] into dst. Absent, null, wrongly typed
// and empty string values are all reported as incomplete data.
func requiredField[T string | float64](fields map[string]json.RawMessage, key string, dst *T) error {
	raw, ok := fields[key]
	if !ok || strings.TrimSpace(string(raw)) == "null" {
		return fmt.Errorf("%w: missing %s", ErrIncomplete, key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: field %q", ErrIncomplete, key)
	}
	if s, isString := any(*dst).(string); isString && s == "" {
		return fmt.Errorf("%w: missing %s", ErrIncomplete, key)
	}
	return nil
}

// ServerMessage is one of UserUpdate, AllUsers, UserDisconnected or Error.
type ServerMessage interface {
	messageType() string
}

type UserUpdate struct {
	User User
}

type AllUsers struct {
	Users []User
}

type UserDisconnected struct {
	UUID string
}

type Error struct {
	Message string
}

func (UserUpdate) messageType() string       { return TypeUserUpdate }
func (AllUsers) messageType() string         { return TypeAllUsers }
func (UserDisconnected) messageType() string { return TypeUserDisconnected }
func (Error) messageType() string            { return TypeError }

type envelope struct {
	Type    string `json:"type"`
	User    *User  `json:"user,omitempty"`
	Users   []User `json:"users,omitempty"`
	UUID    string `json:"uuid,omitempty"`
	Message string `json:"message,omitempty"`
}

func Encode(msg ServerMessage) ([]byte, error) {
	env := envelope{Type: msg.messageType()}
	switch m := msg.(type) {
	case UserUpdate:
		u := m.User
		env.User = &u
	case AllUsers:
		env.Users = m.Users
	case UserDisconnected:
		env.UUID = m.UUID
	case Error:
		env.Message = m.Message
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", env.Type, err)
	}
	return data, nil
}

// DecodeServerMessage parses a server to client message, rejecting any
// message whose type tag is unknown or whose tagged payload is missing.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeUserUpdate:
		if env.User == nil {
			return nil, fmt.Errorf("%w: %s without user", ErrMalformed, env.Type)
		}
		return UserUpdate{User: *env.User}, nil
	case TypeAllUsers:
		return AllUsers{Users: env.Users}, nil
	case TypeUserDisconnected:
		if env.UUID == "" {
			return nil, fmt.Errorf("%w: %s without uuid", ErrMalformed, env.Type)
		}
		return UserDisconnected{UUID: env.UUID}, nil
	case TypeError:
		return Error{Message: env.Message}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}
