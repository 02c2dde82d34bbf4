package domain

import "time"

// Participant is the latest known state of one connected entity.
// LastSeen is server-side bookkeeping and never goes on the wire.
type Participant struct {
	ID          string
	DisplayName string
	Lat         float64
	Lng         float64
	LastSeen    time.Time
}

type Connection interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// Dispatcher owns the registry of live connections and fans state changes
// out to them.
type Dispatcher interface {
	Register(conn Connection)
	Publish(conn Connection, p Participant) error
	Disconnect(conn Connection)
	Stats() (connections, participants int)
}

type MessageHandler interface {
	Handle(conn Connection, data []byte)
	Disconnect(conn Connection)
}
