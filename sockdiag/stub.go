//go:build !linux

package sockdiag

import (
	"syscall"
)

func Listeners(ports []uint16) ([]Listener, error) { return nil, ErrUnsupported }
func Cookie(conn syscall.Conn) (uint64, error)      { return 0, ErrUnsupported }
func Inode(conn syscall.Conn) (uint32, error)       { return 0, ErrUnsupported }
