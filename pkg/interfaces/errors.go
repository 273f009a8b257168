package interfaces

import "errors"

// Contract errors shared by all implementations of the state indexes.
var (
	// ErrDuplicateConnection indicates a connection ID was registered twice.
	ErrDuplicateConnection = errors.New("connection already registered")

	// ErrUnknownConnection indicates an operation referenced a connection
	// that is not registered.
	ErrUnknownConnection = errors.New("connection not registered")

	// ErrRoomExists indicates a host request named a room that already exists.
	ErrRoomExists = errors.New("room exists already")

	// ErrNoSuchRoom indicates a join request named a room that does not exist.
	ErrNoSuchRoom = errors.New("room does not exist")

	// ErrUsernameTaken indicates an account create request named an existing user.
	ErrUsernameTaken = errors.New("username exists already")

	// ErrBadCredentials indicates a login request failed verification.
	ErrBadCredentials = errors.New("wrong username or password")
)
