package sockdiag

import (
	ne "github.com/josharian/native"
)

// Htons converts a port to network byte order, as sock_diag expects it.
func Htons(in uint16) uint16 {
	if !ne.IsBigEndian {
		return uint16((in&0xFF)<<8) | uint16((in>>8)&0xFF)
	}
	return in
}

// Ntohs is the inverse of Htons.
func Ntohs(in uint16) uint16 {
	return Htons(in)
}
