// Package rooms tracks room membership. Every registered connection is
// either in exactly one room or in the lobby, and a room exists exactly
// while it has members.
package rooms

import (
	"parley/pkg/interfaces"
	"parley/pkg/types"
)

// Registry is the in-memory room state. It is not safe for concurrent
// use; the multiplexer goroutine owns it.
type Registry struct {
	current map[types.ConnID]string   // "" means lobby
	members map[string][]types.ConnID // room name to members, join order
}

var _ interfaces.RoomRegistry = (*Registry)(nil)

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{
		current: make(map[types.ConnID]string),
		members: make(map[string][]types.ConnID),
	}
}

// AddConnection registers a connection in the lobby.
func (r *Registry) AddConnection(id types.ConnID) error {
	if _, exists := r.current[id]; exists {
		return interfaces.ErrDuplicateConnection
	}
	r.current[id] = ""
	return nil
}

// RemoveConnection takes the connection out of its room, if any, and
// forgets it.
func (r *Registry) RemoveConnection(id types.ConnID) error {
	if _, exists := r.current[id]; !exists {
		return interfaces.ErrUnknownConnection
	}
	r.leave(id)
	delete(r.current, id)
	return nil
}

// Host creates a new room and moves the connection into it. When the room
// name is taken the connection's membership is left untouched.
func (r *Registry) Host(id types.ConnID, room string) error {
	if _, exists := r.current[id]; !exists {
		return interfaces.ErrUnknownConnection
	}
	if _, exists := r.members[room]; exists {
		return interfaces.ErrRoomExists
	}
	r.leave(id)
	r.members[room] = append(r.members[room], id)
	r.current[id] = room
	return nil
}

// Join moves the connection into an existing room. Joining the room the
// connection already occupies re-appends it at the end of the member list.
func (r *Registry) Join(id types.ConnID, room string) error {
	if _, exists := r.current[id]; !exists {
		return interfaces.ErrUnknownConnection
	}
	if _, exists := r.members[room]; !exists {
		return interfaces.ErrNoSuchRoom
	}
	r.leave(id)
	r.members[room] = append(r.members[room], id)
	r.current[id] = room
	return nil
}

// Leave moves the connection back to the lobby. The boolean is false when
// the connection was already there.
func (r *Registry) Leave(id types.ConnID) (string, bool, error) {
	if _, exists := r.current[id]; !exists {
		return "", false, interfaces.ErrUnknownConnection
	}
	room := r.leave(id)
	return room, room != "", nil
}

// RoomOf reports the room the connection occupies, or "" for the lobby.
func (r *Registry) RoomOf(id types.ConnID) (string, error) {
	room, exists := r.current[id]
	if !exists {
		return "", interfaces.ErrUnknownConnection
	}
	return room, nil
}

// MembersOf lists the members of the connection's room in join order. It
// returns nil when the connection is in the lobby or not registered.
func (r *Registry) MembersOf(id types.ConnID) []types.ConnID {
	room, exists := r.current[id]
	if !exists || room == "" {
		return nil
	}
	return r.members[room]
}

// Rooms reports the number of active rooms.
func (r *Registry) Rooms() int {
	return len(r.members)
}

// leave removes the connection from its current room and reports which
// room that was. A room left with no members is deleted.
func (r *Registry) leave(id types.ConnID) string {
	room := r.current[id]
	if room == "" {
		return ""
	}

	list := r.members[room]
	for i, member := range list {
		if member == id {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.members, room)
	} else {
		r.members[room] = list
	}

	r.current[id] = ""
	return room
}
