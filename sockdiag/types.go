package sockdiag

import (
	"errors"
	"fmt"
)

var ErrUnsupported = errors.New("socket inspection is only available on linux")

// Listener is a TCP socket in the LISTEN state.
type Listener struct {
	Family uint8  `json:"family" structs:"family"`
	Port   uint16 `json:"port" structs:"port"`
	Cookie uint64 `json:"cookie" structs:"cookie"`
	Inode  uint32 `json:"inode" structs:"inode"`
	UID    uint32 `json:"uid" structs:"uid"`
}

func (l Listener) String() string {
	return fmt.Sprintf("%s port %d (cookie %#x, inode %d, uid %d)", l.Network(), l.Port, l.Cookie, l.Inode, l.UID)
}

// Network names the listener's family the way net.Listen does.
func (l Listener) Network() string {
	return familyName(l.Family)
}

// joinCookie rebuilds the 64 bit socket cookie the kernel splits in two.
func joinCookie(c [2]uint32) uint64 {
	return uint64(c[1])<<32 | uint64(c[0])
}

func familyName(f uint8) string {
	switch f {
	case AF_INET:
		return "tcp4"
	case AF_INET6:
		return "tcp6"
	default:
		return "unknown"
	}
}

// Mirrors of the unix constants so that String works everywhere.
const (
	AF_INET  uint8 = 2
	AF_INET6 uint8 = 10
)
