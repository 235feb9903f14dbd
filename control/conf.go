package control

import (
	"time"

	"github.com/goccy/go-yaml"
)

type Config struct {
	// Reload the configuration file whenever it changes on disk.
	Watch bool `yaml:"watch"`

	// Quiet period after the last change before reloading. Editors often
	// write a file in several steps.
	Debounce time.Duration `yaml:"debounce"`
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
	Watch:    true,
	Debounce: 250 * time.Millisecond,
}
