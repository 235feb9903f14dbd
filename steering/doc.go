// Package steering implements the connection steering decision.
//
// On every connection lookup the Engine reads the destination port and asks
// a PortAllowlist whether the port is steered. Ports that aren't steered are
// passed untouched. Steered ports are handed to the single socket held by a
// SocketRegistry; when there's no such socket, or when handing the connection
// over fails, the lookup is dropped instead of falling through to whatever
// else is listening on the port.
//
// Both stores are owned by the caller and only read by the Engine. Allowlist
// and Slot are the in-memory implementations; the sklookup package provides
// kernel-backed ones.
package steering
