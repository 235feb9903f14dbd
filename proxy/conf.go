package proxy

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/gwuah/steerd/steering"
)

type Config struct {
	// Address and port of the dedicated socket in sklookup mode. Steered
	// connections keep their original local port no matter what we bind.
	BindAddress string `yaml:"bindAddress"`
	Port        uint16 `yaml:"port"`

	// Deadline applied to both legs of a proxied connection.
	Timeout time.Duration `yaml:"timeout"`

	// How many dial attempts we make, each against the next target in
	// line, before giving up on a connection.
	MaxReplayCount int `yaml:"maxReplayCount"`
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
	BindAddress:    "127.0.0.1",
	Port:           8080,
	Timeout:        45 * time.Second,
	MaxReplayCount: 5,
}

// App groups the ports steered on behalf of an application and the
// addresses connections to them are forwarded to.
type App struct {
	Name    string   `yaml:"name"`
	Ports   []uint16 `yaml:"ports"`
	Targets []string `yaml:"targets"`
}

// ValidateApps checks no port is claimed twice and that the overall number
// of ports fits in the allow-list.
func ValidateApps(apps []App) error {
	names := map[string]struct{}{}
	ports := map[uint16]string{}

	var errs error
	for _, app := range apps {
		if app.Name == "" {
			errs = errors.Join(errs, fmt.Errorf("found an app without a name"))
			continue
		}
		if _, ok := names[app.Name]; ok {
			errs = errors.Join(errs, fmt.Errorf("duplicate app %q", app.Name))
		}
		names[app.Name] = struct{}{}

		if len(app.Targets) == 0 {
			errs = errors.Join(errs, fmt.Errorf("app %q has no targets", app.Name))
		}

		for _, port := range app.Ports {
			if port == 0 {
				errs = errors.Join(errs, fmt.Errorf("app %q: port 0 can't be steered", app.Name))
				continue
			}
			if owner, ok := ports[port]; ok {
				errs = errors.Join(errs, fmt.Errorf("port %d claimed by both %q and %q", port, owner, app.Name))
				continue
			}
			ports[port] = app.Name
		}
	}

	if len(ports) > steering.MaxPorts {
		errs = errors.Join(errs, fmt.Errorf("%d ports configured, at most %d can be steered", len(ports), steering.MaxPorts))
	}

	return errs
}
