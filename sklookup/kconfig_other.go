//go:build !linux

package sklookup

type Report struct {
	Release      string
	Major        int
	Minor        int
	KConfigFound bool
	Options      map[string]string
	Missing      []string
}

func (r Report) RecentEnough() bool { return false }
func (r Report) Supported() bool    { return false }

func Preflight() (Report, error) {
	return Report{}, ErrUnsupported
}
