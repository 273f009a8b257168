package types

// ConnID identifies one live byte-stream connection. IDs are assigned from a
// process-wide counter at accept time; an ID is never reused while its
// connection is registered.
type ConnID uint64

// Stats is a point-in-time snapshot of multiplexer state, served by the
// admin endpoints.
type Stats struct {
	Connections int     `json:"connections"`
	Rooms       int     `json:"rooms"`
	LoggedIn    int     `json:"logged_in"`
	Oldest      *ConnID `json:"oldest,omitempty"`
}
