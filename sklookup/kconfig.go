//go:build linux

package sklookup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Options the program and its maps depend on.
var requiredOptions = []string{
	"CONFIG_BPF_SYSCALL",
	"CONFIG_INET",
	"CONFIG_NET",
}

// Report describes whether the running kernel can host the steering program.
type Report struct {
	Release string
	Major   int
	Minor   int

	// Whether a kconfig could be found at all. Missing options are only
	// meaningful when it was.
	KConfigFound bool
	Options      map[string]string
	Missing      []string
}

func (r Report) RecentEnough() bool {
	return r.Major > MIN_KERNEL_MAJOR || (r.Major == MIN_KERNEL_MAJOR && r.Minor >= MIN_KERNEL_MINOR)
}

func (r Report) Supported() bool {
	return r.RecentEnough() && len(r.Missing) == 0
}

// Preflight inspects the running kernel's release and configuration.
func Preflight() (Report, error) {
	release, err := kernelRelease()
	if err != nil {
		return Report{}, err
	}

	major, minor, err := parseRelease(release)
	if err != nil {
		return Report{}, err
	}

	r := Report{Release: release, Major: major, Minor: minor}

	f, err := findKConfig(release)
	if err != nil {
		return r, nil
	}
	defer f.Close()

	filter := map[string]struct{}{}
	for _, opt := range requiredOptions {
		filter[opt] = struct{}{}
	}

	opts, err := parseKConfig(f, filter)
	if err != nil {
		return r, fmt.Errorf("error parsing the kconfig: %w", err)
	}

	r.KConfigFound = true
	r.Options = opts
	r.Missing = missingOptions(opts)

	return r, nil
}

func missingOptions(opts map[string]string) []string {
	var missing []string
	for _, opt := range requiredOptions {
		if v, ok := opts[opt]; !ok || (v != "y" && v != "m") {
			missing = append(missing, opt)
		}
	}
	slices.Sort(missing)
	return missing
}

func kernelRelease() (string, error) {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return "", fmt.Errorf("uname failed: %w", err)
	}

	return unix.ByteSliceToString(uname.Release[:]), nil
}

// parseRelease extracts the major and minor versions off releases such as
// 5.15.17-1-lts or 6.1.0-16-amd64.
func parseRelease(release string) (int, int, error) {
	fields := strings.SplitN(release, ".", 3)
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("malformed kernel release %q", release)
	}

	major, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed major version in %q: %w", release, err)
	}

	minorStr := fields[1]
	if i := strings.IndexFunc(minorStr, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		minorStr = minorStr[:i]
	}
	minor, err := strconv.Atoi(minorStr)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed minor version in %q: %w", release, err)
	}

	return major, minor, nil
}

// findKConfig tries /boot/config-<release> before /proc/config.gz.
func findKConfig(release string) (*os.File, error) {
	path := "/boot/config-" + release
	if f, err := os.Open(path); err == nil {
		return f, nil
	}

	if f, err := os.Open("/proc/config.gz"); err == nil {
		return f, nil
	}

	return nil, fmt.Errorf("neither %s nor /proc/config.gz provide a kconfig", path)
}

// parseKConfig returns the options in filter that are set. Gzipped input is
// decompressed transparently and a nil filter keeps everything.
func parseKConfig(source io.ReaderAt, filter map[string]struct{}) (map[string]string, error) {
	var r io.Reader
	zr, err := gzip.NewReader(io.NewSectionReader(source, 0, math.MaxInt64))
	if err != nil {
		r = io.NewSectionReader(source, 0, math.MaxInt64)
	} else {
		r = zr
		defer zr.Close()
	}

	opts := make(map[string]string, len(filter))

	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Bytes()

		// Skips blank lines and "# CONFIG_* is not set".
		if !bytes.HasPrefix(line, []byte("CONFIG_")) {
			continue
		}

		key, value, found := bytes.Cut(line, []byte{'='})
		if !found {
			return nil, fmt.Errorf("line %q does not contain separator '='", line)
		}
		if len(value) == 0 {
			return nil, fmt.Errorf("line %q has no value", line)
		}

		if filter != nil {
			if _, ok := filter[string(key)]; !ok {
				continue
			}
		}

		// The first occurrence wins.
		if _, ok := opts[string(key)]; !ok {
			opts[string(key)] = string(value)
		}

		if filter != nil && len(opts) == len(filter) {
			break
		}
	}

	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("cannot parse: %w", err)
	}

	return opts, nil
}
