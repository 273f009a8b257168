// Package dispatch interprets client lines. A line starting with '/' is a
// command; anything else is a chat message relayed to the sender's room.
package dispatch

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"parley/internal/metrics"
	"parley/pkg/interfaces"
	"parley/pkg/types"
)

// Reply strings are part of the wire contract; clients match on them.
const (
	replyCreatedRoom   = "Created %s\n"
	replyRoomExists    = "%s exists already\n"
	replyJoinedRoom    = "Joined %s\n"
	replyNoSuchRoom    = "%s does not exist\n"
	replyLeftRoom      = "Left %s\n"
	replyNotInRoom     = "User is not in a room\n"
	replyCreatedUser   = "Created account %s\n"
	replyUsernameTaken = "Username exists already.\n"
	replyLoggedIn      = "Logged in as %s\n"
	replyWrongLogin    = "Wrong username/password.\n"
	replyLoggedOut     = "Logged out\n"
	replyUnknown       = "Unknown command\n"
)

// Sender delivers a line to one connection. The multiplexer implements it
// over its connection table.
type Sender interface {
	Send(id types.ConnID, line []byte) error
}

// Dispatcher routes parsed client lines to the room registry and the
// credential store and writes the protocol replies.
type Dispatcher struct {
	log    *zap.Logger
	rooms  interfaces.RoomRegistry
	creds  interfaces.CredentialStore
	sender Sender
}

// NewDispatcher creates a dispatcher over the given state indexes.
func NewDispatcher(log *zap.Logger, rooms interfaces.RoomRegistry, creds interfaces.CredentialStore, sender Sender) *Dispatcher {
	return &Dispatcher{
		log:    log.Named("dispatch"),
		rooms:  rooms,
		creds:  creds,
		sender: sender,
	}
}

// Dispatch processes one logical line from a connection.
func (d *Dispatcher) Dispatch(id types.ConnID, line []byte) {
	if len(line) > 0 && line[0] == '/' {
		d.command(id, line)
		return
	}
	d.relay(id, line)
}

func (d *Dispatcher) command(id types.ConnID, line []byte) {
	// The leading '/' guarantees at least one token.
	tokens := types.Fields(line)

	switch tokens[0] {
	case "/host":
		if len(tokens) < 2 {
			return
		}
		d.hostRoom(id, tokens[1])
	case "/join":
		if len(tokens) < 2 {
			return
		}
		d.joinRoom(id, tokens[1])
	case "/leave":
		d.leaveRoom(id)
	case "/create":
		if len(tokens) < 3 {
			return
		}
		d.createAccount(id, tokens[1], tokens[2])
	case "/login":
		if len(tokens) < 3 {
			return
		}
		d.login(id, tokens[1], tokens[2])
	case "/logout":
		d.logout(id)
	default:
		// The previous protocol answered unknown commands with the
		// not-in-a-room message; a distinct reply is clearer for clients.
		metrics.CommandProcessed("unknown")
		d.send(id, []byte(replyUnknown))
	}
}

func (d *Dispatcher) hostRoom(id types.ConnID, room string) {
	metrics.CommandProcessed("host")
	switch err := d.rooms.Host(id, room); {
	case err == nil:
		d.log.Info("room hosted",
			zap.Uint64("conn_id", uint64(id)),
			zap.String("room", room))
		d.send(id, []byte(fmt.Sprintf(replyCreatedRoom, room)))
	case errors.Is(err, interfaces.ErrRoomExists):
		metrics.CommandFailed("host")
		d.send(id, []byte(fmt.Sprintf(replyRoomExists, room)))
	default:
		metrics.CommandFailed("host")
		d.log.Error("host failed",
			zap.Uint64("conn_id", uint64(id)),
			zap.String("room", room),
			zap.Error(err))
	}
}

func (d *Dispatcher) joinRoom(id types.ConnID, room string) {
	metrics.CommandProcessed("join")
	switch err := d.rooms.Join(id, room); {
	case err == nil:
		d.log.Info("room joined",
			zap.Uint64("conn_id", uint64(id)),
			zap.String("room", room))
		d.send(id, []byte(fmt.Sprintf(replyJoinedRoom, room)))
	case errors.Is(err, interfaces.ErrNoSuchRoom):
		metrics.CommandFailed("join")
		d.send(id, []byte(fmt.Sprintf(replyNoSuchRoom, room)))
	default:
		metrics.CommandFailed("join")
		d.log.Error("join failed",
			zap.Uint64("conn_id", uint64(id)),
			zap.String("room", room),
			zap.Error(err))
	}
}

func (d *Dispatcher) leaveRoom(id types.ConnID) {
	metrics.CommandProcessed("leave")
	room, left, err := d.rooms.Leave(id)
	if err != nil {
		metrics.CommandFailed("leave")
		d.log.Error("leave failed", zap.Uint64("conn_id", uint64(id)), zap.Error(err))
		return
	}
	if !left {
		metrics.CommandFailed("leave")
		d.send(id, []byte(replyNotInRoom))
		return
	}
	d.log.Info("room left",
		zap.Uint64("conn_id", uint64(id)),
		zap.String("room", room))
	d.send(id, []byte(fmt.Sprintf(replyLeftRoom, room)))
}

func (d *Dispatcher) createAccount(id types.ConnID, username, password string) {
	metrics.CommandProcessed("create")
	if err := d.creds.Create(username, password); err != nil {
		metrics.CommandFailed("create")
		if !errors.Is(err, interfaces.ErrUsernameTaken) {
			d.log.Error("account create failed",
				zap.Uint64("conn_id", uint64(id)),
				zap.String("username", username),
				zap.Error(err))
		}
		// Every failure gets the same reply so callers cannot probe
		// for storage errors.
		d.send(id, []byte(replyUsernameTaken))
		return
	}
	d.send(id, []byte(fmt.Sprintf(replyCreatedUser, username)))
}

func (d *Dispatcher) login(id types.ConnID, username, password string) {
	metrics.CommandProcessed("login")
	if err := d.creds.Login(id, username, password); err != nil {
		metrics.CommandFailed("login")
		if !errors.Is(err, interfaces.ErrBadCredentials) {
			d.log.Error("login failed",
				zap.Uint64("conn_id", uint64(id)),
				zap.String("username", username),
				zap.Error(err))
		}
		d.send(id, []byte(replyWrongLogin))
		return
	}
	d.log.Info("logged in",
		zap.Uint64("conn_id", uint64(id)),
		zap.String("username", username))
	d.send(id, []byte(fmt.Sprintf(replyLoggedIn, username)))
}

func (d *Dispatcher) logout(id types.ConnID) {
	metrics.CommandProcessed("logout")
	if err := d.creds.Logout(id); err != nil {
		metrics.CommandFailed("logout")
		d.log.Error("logout failed", zap.Uint64("conn_id", uint64(id)), zap.Error(err))
		return
	}
	d.send(id, []byte(replyLoggedOut))
}

// relay fans a chat line out to every member of the sender's room,
// including the sender. A connection in the lobby hears only itself.
func (d *Dispatcher) relay(id types.ConnID, line []byte) {
	label, err := d.creds.NameOf(id)
	if err != nil {
		d.log.Error("relay for unknown connection", zap.Uint64("conn_id", uint64(id)), zap.Error(err))
		return
	}
	if label == "" {
		label = fmt.Sprintf("Guest %d", id)
	}
	message := []byte(fmt.Sprintf("%s: %s", label, line))

	relayID := uuid.New().String()
	members := d.rooms.MembersOf(id)
	if len(members) == 0 {
		d.send(id, message)
		metrics.MessageRelayed()
		d.log.Debug("lobby echo",
			zap.String("relay_id", relayID),
			zap.Uint64("conn_id", uint64(id)))
		return
	}

	for _, member := range members {
		d.send(member, message)
	}
	metrics.MessageRelayed()
	d.log.Debug("message relayed",
		zap.String("relay_id", relayID),
		zap.Uint64("conn_id", uint64(id)),
		zap.Int("recipients", len(members)))
}

// send delivers one line and logs failures. Delivery problems never abort
// a fan-out; the affected connection is torn down by its own read loop.
func (d *Dispatcher) send(id types.ConnID, line []byte) {
	if err := d.sender.Send(id, line); err != nil {
		d.log.Warn("send failed", zap.Uint64("conn_id", uint64(id)), zap.Error(err))
	}
}
