package main

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/gwuah/steerd/api"
	"github.com/gwuah/steerd/control"
	"github.com/gwuah/steerd/dispatch"
	"github.com/gwuah/steerd/proxy"
	"github.com/gwuah/steerd/sklookup"
	"github.com/gwuah/steerd/types"
)

//go:embed schema.json
var rawSchema []byte

const schemaURL string = "steerd.schema.json"

type Config struct {
	PidPath string `yaml:"pidPath"`

	RawMode string     `yaml:"mode"`
	Mode    types.Mode `yaml:"-"` // Parsed mode

	Apps []proxy.App `yaml:"apps"`

	Proxy    *proxy.Config    `yaml:"proxy"`
	SkLookup *sklookup.Config `yaml:"sklookup"`
	Dispatch *dispatch.Config `yaml:"dispatch"`
	Control  *control.Config  `yaml:"control"`
	Api      *api.Config      `yaml:"api"`
}

func (c Config) String() string {
	m, err := yaml.MarshalWithOptions(c, yaml.Indent(2), yaml.IndentSequence(true))
	if err != nil {
		return "marshalling error..."
	}
	return string(m)
}

func (c *Config) UnmarshalYAML(b []byte) error {
	// Needed to break recursive calls into UnmarshalYAML
	type config Config

	def := &config{
		PidPath: "/var/run/steerd.pid",
		RawMode: "sklookup",
		Apps:    []proxy.App{},
	}

	if err := yaml.Unmarshal(b, def); err != nil {
		return err
	}

	m, ok := types.ParseMode(def.RawMode)
	if !ok {
		return fmt.Errorf("wrong mode %q", def.RawMode)
	}
	def.Mode = m

	// Missing sections get their defaults.
	if def.Proxy == nil {
		pc := proxy.DefaultConfig
		def.Proxy = &pc
	}
	if def.SkLookup == nil {
		sc := sklookup.DefaultConfig
		def.SkLookup = &sc
	}
	if def.Dispatch == nil {
		dc := dispatch.DefaultConfig
		def.Dispatch = &dc
	}
	if def.Control == nil {
		cc := control.DefaultConfig
		def.Control = &cc
	}
	if def.Api == nil {
		ac := api.DefaultConfig
		def.Api = &ac
	}

	*c = Config(*def)

	return nil
}

// ReadConf parses and validates a YAML (or JSON) configuration file.
func ReadConf(path string) (*Config, error) {
	r, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading the configuration file: %w", err)
	}

	if err := validateSchema(r); err != nil {
		return nil, fmt.Errorf("the configuration doesn't match the schema: %w", err)
	}

	conf := Config{}
	if err := yaml.Unmarshal(r, &conf); err != nil {
		return nil, fmt.Errorf("error unmarshaling the configuration: %w", err)
	}

	if err := proxy.ValidateApps(conf.Apps); err != nil {
		return nil, fmt.Errorf("invalid apps: %w", err)
	}

	return &conf, nil
}

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(rawSchema))
	if err != nil {
		return nil, fmt.Errorf("error parsing the embedded schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("error adding the embedded schema: %w", err)
	}

	return c.Compile(schemaURL)
})

func validateSchema(raw []byte) error {
	sch, err := compileSchema()
	if err != nil {
		return err
	}

	j, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return fmt.Errorf("error converting the configuration to JSON: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(j))
	if err != nil {
		return fmt.Errorf("error parsing the converted configuration: %w", err)
	}

	return sch.Validate(inst)
}
