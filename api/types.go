package api

import (
	"encoding/json"

	"github.com/fatih/structs"
	"github.com/labstack/echo/v4"
)

const (
	JSON_PRETTY_INDENT string = "    "
)

// validTags lists the struct tags clients can pick to trim responses.
var validTags = map[string]struct{}{
	// Only whether a dedicated socket is present.
	"lean": {},
}

// SocketStatus describes the dedicated socket slot. The struct tags control
// what's marshalled for each verbosity.
type SocketStatus struct {
	Verbosity string `structs:"-" lean:"-"`

	Mode    string `structs:"mode" lean:"-"`
	Present bool   `structs:"present" lean:"present"`

	// Socket cookie of the dedicated socket. Only known in sklookup mode.
	Cookie uint64 `structs:"cookie,omitempty" lean:"-"`

	// Inode of the dedicated socket, the key matching it against the
	// host's listeners. Only known in sklookup mode.
	Inode uint32 `structs:"inode,omitempty" lean:"-"`

	// References handed out and not yet released.
	Outstanding int64 `structs:"outstanding" lean:"-"`

	// Connections queued on the dedicated socket. Only known in userspace
	// mode.
	Pending int `structs:"pending,omitempty" lean:"-"`
}

// MarshalJSON picks the struct tag matching the requested verbosity, falling
// back to the complete `structs` one.
func (s *SocketStatus) MarshalJSON() ([]byte, error) {
	st := structs.New(s)

	if _, ok := validTags[s.Verbosity]; ok {
		st.TagName = s.Verbosity
	}

	return json.Marshal(st.Map())
}

// StatusFunc reports the current state of the dedicated socket.
type StatusFunc func() (SocketStatus, error)

type rootResponse struct {
	ApiRoutes []*echo.Route `json:"routes"`
}

type portsResponse struct {
	Ports    []uint16 `json:"ports"`
	Capacity int      `json:"capacity"`
}

type portResponse struct {
	Port    uint16 `json:"port"`
	Steered bool   `json:"steered"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type extendedContext struct {
	echo.Context
	apiRoutes []*echo.Route
}
