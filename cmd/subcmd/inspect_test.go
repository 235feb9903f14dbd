package subcmd

import (
	"testing"

	"github.com/gwuah/steerd/sockdiag"
)

func TestIsDedicated(t *testing.T) {
	tests := []struct {
		l     sockdiag.Listener
		inode uint32
		want  bool
	}{
		// sock_diag and SO_COOKIE disagreeing on the cookie.
		{sockdiag.Listener{Port: 8080, Cookie: 12, Inode: 13385}, 13385, true},
		{sockdiag.Listener{Port: 8080, Cookie: 11, Inode: 13386}, 13385, false},
		{sockdiag.Listener{Port: 8080, Inode: 0}, 0, false},
		{sockdiag.Listener{Port: 8080, Inode: 13385}, 0, false},
	}

	for _, test := range tests {
		if got := isDedicated(test.l, test.inode); got != test.want {
			t.Errorf("%s against inode %d: got %v, want %v", test.l, test.inode, got, test.want)
		}
	}
}
