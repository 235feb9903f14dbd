//go:build linux && ebpf

package sklookup

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cilium/ebpf"
)

func loadProg(rawProg []byte) (*ebpf.Collection, error) {
	progSpec, err := ebpf.LoadCollectionSpecFromReader(bytes.NewReader(rawProg))
	if err != nil {
		return nil, fmt.Errorf("error parsing the eBPF program: %w", err)
	}

	coll, err := ebpf.NewCollectionWithOptions(progSpec, ebpf.CollectionOptions{
		Programs: ebpf.ProgramOptions{
			// bits ebpf.LogLevelBranch | ebpf.LogLevelInstruction make the output very verbose!
			LogLevel: ebpf.LogLevelStats,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error loading the eBPF program: %w", err)
	}

	prog, ok := coll.Programs[PROG_NAME]
	if !ok {
		coll.Close()
		return nil, fmt.Errorf("program %q hasn't been loaded", PROG_NAME)
	}
	if prog.Type() != ebpf.SkLookup {
		coll.Close()
		return nil, fmt.Errorf("program %q is of type %s, want %s", PROG_NAME, prog.Type(), ebpf.SkLookup)
	}

	for _, name := range []string{PORTS_MAP, SOCKET_MAP} {
		if _, ok := coll.Maps[name]; !ok {
			coll.Close()
			return nil, fmt.Errorf("map %q hasn't been loaded", name)
		}
	}

	for n, prog := range coll.Programs {
		slog.Debug("loaded program", "name", n, "type", prog.Type(), "descr", prog.String(), "fd", prog.FD())
		for i, l := range strings.Split(prog.VerifierLog, "\n") {
			if l == "" {
				continue
			}
			slog.Debug("verifier output", "#", i, "l", l)
		}
	}

	for n, m := range coll.Maps {
		slog.Debug("loaded map", "name", n, "type", m.Type(), "descr", m, "fd", m.FD())
	}

	return coll, nil
}
