package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_WireShapes(t *testing.T) {
	tests := []struct {
		name string
		msg  ServerMessage
		want string
	}{
		{
			name: "user update",
			msg:  UserUpdate{User: User{UUID: "b1", UserName: "Bob", Lat: 50.1, Lng: 19.1}},
			want: `{"type":"user_update","user":{"uuid":"b1","userName":"Bob","lat":50.1,"lng":19.1}}`,
		},
		{
			name: "all users",
			msg:  AllUsers{Users: []User{{UUID: "a1", UserName: "Alice", Lat: 52, Lng: 21}}},
			want: `{"type":"all_users","users":[{"uuid":"a1","userName":"Alice","lat":52,"lng":21}]}`,
		},
		{
			name: "user disconnected",
			msg:  UserDisconnected{UUID: "a1"},
			want: `{"type":"user_disconnected","uuid":"a1"}`,
		},
		{
			name: "error",
			msg:  Error{Message: "bad"},
			want: `{"type":"error","message":"bad"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestDecodeServerMessage_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{name: "unknown type", payload: `{"type":"teleport"}`, wantErr: ErrUnknownType},
		{name: "missing type", payload: `{"uuid":"a1"}`, wantErr: ErrUnknownType},
		{name: "update without user", payload: `{"type":"user_update"}`, wantErr: ErrMalformed},
		{name: "disconnect without uuid", payload: `{"type":"user_disconnected"}`, wantErr: ErrMalformed},
		{name: "garbage", payload: `}{`, wantErr: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeServerMessage([]byte(tt.payload))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStateUpdate_MarshalsWireShape(t *testing.T) {
	data, err := json.Marshal(StateUpdate{UUID: "a1", UserName: "Alice", Lat: 52, Lng: 21})
	require.NoError(t, err)
	assert.JSONEq(t, `{"uuid":"a1","userName":"Alice","lat":52,"lng":21}`, string(data))

	decoded, err := DecodeStateUpdate(data)
	require.NoError(t, err)
	assert.Equal(t, StateUpdate{UUID: "a1", UserName: "Alice", Lat: 52, Lng: 21}, decoded)
}

func TestDecodeStateUpdate_IgnoresExtraFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "type tag", payload: `{"uuid":"a1","userName":"Alice","lat":1,"lng":2,"type":"whatever"}`},
		{name: "differently cased duplicate", payload: `{"uuid":"a1","userName":"Alice","lat":1,"lng":2,"Uuid":""}`},
		{name: "upper cased coordinates", payload: `{"LAT":"x","uuid":"a1","userName":"Alice","lat":1,"lng":2,"LNG":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := DecodeStateUpdate([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, StateUpdate{UUID: "a1", UserName: "Alice", Lat: 1, Lng: 2}, decoded)
		})
	}
}
