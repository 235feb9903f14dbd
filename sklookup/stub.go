//go:build !linux || !ebpf

package sklookup

import (
	"syscall"
)

type Steerer struct {
	Config
}

func NewSteerer(c *Config) (*Steerer, error) { return nil, ErrUnsupported }

func (s *Steerer) String() string {
	return "sk_lookup steerer stub"
}

func (s *Steerer) Run(done <-chan struct{}) {}

func (s *Steerer) Init() error        { return ErrUnsupported }
func (s *Steerer) Cleanup() error     { return nil }
func (s *Steerer) Ports() *PortMap    { return &PortMap{} }
func (s *Steerer) Socket() *SocketMap { return &SocketMap{} }

type PortMap struct{}

func (p *PortMap) Contains(port uint16) bool { return false }
func (p *PortMap) Add(port uint16) error     { return ErrUnsupported }
func (p *PortMap) Remove(port uint16) error  { return ErrUnsupported }
func (p *PortMap) Ports() ([]uint16, error)  { return nil, ErrUnsupported }
func (p *PortMap) Seed(ports []uint16) error { return ErrUnsupported }

type SocketMap struct{}

func (s *SocketMap) Set(conn syscall.Conn) error   { return ErrUnsupported }
func (s *SocketMap) Clear() error                  { return ErrUnsupported }
func (s *SocketMap) Cookie() (uint64, bool, error) { return 0, false, ErrUnsupported }
