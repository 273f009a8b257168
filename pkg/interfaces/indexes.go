package interfaces

import "parley/pkg/types"

// RecencyIndex tracks connections ordered by last activity. None of its
// methods are safe for concurrent use; the multiplexer serializes access.
type RecencyIndex interface {
	// Add registers a connection as the most recently active.
	Add(id types.ConnID) error

	// Remove drops a connection from the index.
	Remove(id types.ConnID) error

	// Touch marks a connection as the most recently active.
	Touch(id types.ConnID) error

	// Oldest returns the least recently active connection, or false
	// when the index is empty.
	Oldest() (types.ConnID, bool)

	// Len reports the number of tracked connections.
	Len() int

	// Snapshot lists all connections from least to most recently active.
	Snapshot() []types.ConnID
}

// RoomRegistry tracks which room each connection occupies and the member
// list of every room. A connection in no room is in the lobby.
type RoomRegistry interface {
	// AddConnection registers a connection in the lobby.
	AddConnection(id types.ConnID) error

	// RemoveConnection takes a connection out of its room, if any, and
	// forgets it. Rooms left empty are deleted.
	RemoveConnection(id types.ConnID) error

	// Host creates a new room and moves the connection into it. The
	// room name must not already exist.
	Host(id types.ConnID, room string) error

	// Join moves the connection into an existing room.
	Join(id types.ConnID, room string) error

	// Leave moves the connection back to the lobby. It reports the room
	// that was left and whether the connection was in one at all.
	Leave(id types.ConnID) (string, bool, error)

	// RoomOf reports the room a connection occupies, or "" for the lobby.
	RoomOf(id types.ConnID) (string, error)

	// MembersOf lists the members of the room the connection occupies.
	// It returns nil when the connection is in the lobby.
	MembersOf(id types.ConnID) []types.ConnID

	// Rooms reports the number of active rooms.
	Rooms() int
}

// CredentialStore persists accounts and tracks which username each
// connection is logged in as.
type CredentialStore interface {
	// AddConnection registers a connection as logged out.
	AddConnection(id types.ConnID) error

	// RemoveConnection forgets a connection and its login binding.
	RemoveConnection(id types.ConnID) error

	// Create persists a new account. The username must not exist yet.
	Create(username, password string) error

	// Login verifies the password and binds the connection to the
	// username, replacing any previous binding.
	Login(id types.ConnID, username, password string) error

	// Logout clears the connection's binding. Logging out a connection
	// that was never logged in is not an error.
	Logout(id types.ConnID) error

	// NameOf reports the username a connection is logged in as, or ""
	// when it is a guest.
	NameOf(id types.ConnID) (string, error)

	// LoggedIn reports how many connections hold a login binding.
	LoggedIn() int
}
