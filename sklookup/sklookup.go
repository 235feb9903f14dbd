//go:build linux && ebpf

package sklookup

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"
	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"

	"github.com/gwuah/steerd/internal/progs"
)

// Steerer loads the sk_lookup program and attaches it to a network
// namespace. The program stays attached for as long as the Steerer lives.
type Steerer struct {
	Config

	coll *ebpf.Collection
	link link.Link

	ports  *PortMap
	socket *SocketMap
}

func NewSteerer(c *Config) (*Steerer, error) {
	if c == nil {
		c = &DefaultConfig
	}
	s := Steerer{Config: *c}
	return &s, nil
}

func (s *Steerer) String() string {
	return "sk_lookup steerer"
}

func (s *Steerer) Init() error {
	slog.Debug("initialising the sk_lookup steerer")

	// Only needed on kernels accounting eBPF memory against RLIMIT_MEMLOCK.
	if err := rlimit.RemoveMemlock(); err != nil {
		return fmt.Errorf("error removing the memlock limit: %w", err)
	}

	var (
		prog []byte
		err  error
	)
	if s.ProgramPath != "" {
		slog.Debug("loading the provided eBPF program", "path", s.ProgramPath)
		prog, err = os.ReadFile(s.ProgramPath)
		if err != nil {
			return fmt.Errorf("error reading user provided program: %w", err)
		}
	} else {
		prog, err = progs.GetSteerProgram(embeddedProgram(s.DebugMode))
		if err != nil {
			return fmt.Errorf("error reading the embedded eBPF program: %w", err)
		}
	}

	coll, err := loadProg(prog)
	if err != nil {
		return fmt.Errorf("error loading the eBPF program: %w", err)
	}
	s.coll = coll
	s.ports = &PortMap{m: coll.Maps[PORTS_MAP]}
	s.socket = &SocketMap{m: coll.Maps[SOCKET_MAP]}

	netns, err := os.Open(s.NetnsPath)
	if err != nil {
		s.coll.Close()
		return fmt.Errorf("error opening the network namespace %q: %w", s.NetnsPath, err)
	}
	defer netns.Close()

	if err := checkNetns(netns); err != nil {
		slog.Warn("couldn't compare the target network namespace with ours", "err", err)
	}

	slog.Debug("attaching program", "netns", s.NetnsPath)
	l, err := link.AttachNetNs(int(netns.Fd()), s.coll.Programs[PROG_NAME])
	if err != nil {
		s.coll.Close()
		return fmt.Errorf("couldn't attach the program to %q: %w", s.NetnsPath, err)
	}
	s.link = l

	info, err := l.Info()
	if err != nil {
		slog.Warn("error getting link info", "err", err)
	} else {
		slog.Debug("link", "info", info, "id", info.ID)
	}

	return nil
}

// Run simply holds on to the attachment until done is closed.
func (s *Steerer) Run(done <-chan struct{}) {
	<-done
	slog.Debug("cleanly exiting the sk_lookup steerer")
}

func (s *Steerer) Cleanup() error {
	slog.Debug("cleaning up the sk_lookup steerer")

	var errs error
	if s.link != nil {
		if err := s.link.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("error closing the link: %w", err))
		}
	}
	if s.coll != nil {
		s.coll.Close()
	}

	return errs
}

// Ports returns the kernel allow-list. Only valid after Init.
func (s *Steerer) Ports() *PortMap {
	return s.ports
}

// Socket returns the kernel socket slot. Only valid after Init.
func (s *Steerer) Socket() *SocketMap {
	return s.socket
}

// checkNetns logs whether we're steering our own network namespace or a
// foreign one.
func checkNetns(netns *os.File) error {
	var st unix.Stat_t
	if err := unix.Fstat(int(netns.Fd()), &st); err != nil {
		return fmt.Errorf("error stating the namespace: %w", err)
	}

	proc, err := procfs.NewProc(os.Getpid())
	if err != nil {
		return fmt.Errorf("error getting proc entry for PID %d: %w", os.Getpid(), err)
	}

	nss, err := proc.Namespaces()
	if err != nil {
		return fmt.Errorf("error listing our namespaces: %w", err)
	}

	own, ok := nss["net"]
	if !ok {
		return fmt.Errorf("couldn't find our network namespace")
	}

	if uint64(own.Inode) != uint64(st.Ino) {
		slog.Info("steering a foreign network namespace", "ours", own.Inode, "target", st.Ino)
	} else {
		slog.Debug("steering our own network namespace", "inode", own.Inode)
	}

	return nil
}
