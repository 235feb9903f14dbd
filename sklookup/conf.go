package sklookup

import (
	"errors"

	"github.com/goccy/go-yaml"
)

const (
	PROG_NAME      string = "steer"
	PORTS_MAP      string = "ports"
	SOCKET_MAP     string = "dedicated_socket"
	DEDICATED_SLOT uint32 = 0
	DEFAULT_NETNS  string = "/proc/self/ns/net"
	EMBEDDED_PROG  string = "steer.bpf.o"
	EMBEDDED_DBG   string = "steer-dbg.bpf.o"

	// sk_lookup programs landed in 5.9.
	MIN_KERNEL_MAJOR int = 5
	MIN_KERNEL_MINOR int = 9
)

var ErrUnsupported = errors.New("sk_lookup steering needs linux and a binary built with the ebpf tag")

type Config struct {
	// Path to an externally compiled program. The embedded one is used
	// when empty.
	ProgramPath string `yaml:"programPath"`

	// Network namespace the program is attached to.
	NetnsPath string `yaml:"netnsPath"`

	// Load the program variant logging to the kernel's trace pipe.
	DebugMode bool `yaml:"debugMode"`
}

func (c *Config) UnmarshalYAML(b []byte) error {
	// Needed to break recursive calls into UnmarshalYAML
	type config Config

	def := config(DefaultConfig)

	if err := yaml.Unmarshal(b, &def); err != nil {
		return err
	}

	*c = Config(def)

	return nil
}

var DefaultConfig = Config{
	ProgramPath: "",
	NetnsPath:   DEFAULT_NETNS,
	DebugMode:   false,
}

func embeddedProgram(debug bool) string {
	if debug {
		return EMBEDDED_DBG
	}
	return EMBEDDED_PROG
}
