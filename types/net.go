package types

import (
	"net/netip"
)

// IsLocalOnly reports whether binding to addr keeps a service off the public
// network. The unspecified address binds every interface, so it's not local.
func IsLocalOnly(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsUnspecified() {
		return false
	}
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast()
}
