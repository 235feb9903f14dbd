// Package sockdiag inspects the host's TCP listeners over sock_diag(7) so that
// operators can tell which sockets steered ports shadow and which one is the
// dedicated socket.
package sockdiag
