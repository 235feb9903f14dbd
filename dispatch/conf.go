package dispatch

import (
	"github.com/goccy/go-yaml"
)

type Config struct {
	// Address the dispatcher listens on for every application port.
	BindAddress string `yaml:"bindAddress"`

	// Number of steered connections the dedicated socket can hold before
	// further assignments fail.
	QueueSize int `yaml:"queueSize"`
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
	BindAddress: "127.0.0.1",
	QueueSize:   128,
}
