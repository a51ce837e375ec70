package mcp

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/configloader"
	"github.com/go-playground/validator/v10"
)

// ErrConfiguration is returned for missing or malformed provider configuration.
var ErrConfiguration = errors.New("configuration error")

// ServerConfig specifies how to launch a tool provider.
type ServerConfig struct {
	// Command is the executable to launch.
	Command string `json:"command" yaml:"command" toml:"command" validate:"required"`
	// Args are passed to the command.
	Args []string `json:"args,omitempty" yaml:"args,omitempty" toml:"args,omitempty"`
	// Env overrides the environment inherited from this process.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty" toml:"env,omitempty"`
}

// Environ returns the process environment with the overrides applied.
func (c *ServerConfig) Environ() []string {
	env := os.Environ()
	if len(c.Env) == 0 {
		return env
	}

	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	res := make([]string, 0, len(env)+len(keys))
	for _, kv := range env {
		name, _, _ := strings.Cut(kv, "=")
		if _, ok := c.Env[name]; !ok {
			res = append(res, kv)
		}
	}
	for _, k := range keys {
		res = append(res, k+"="+c.Env[k])
	}
	return res
}

// Config is the provider configuration file.
type Config struct {
	// Servers maps provider id to its launch configuration.
	Servers map[string]*ServerConfig `json:"mcpServers" yaml:"mcpServers" toml:"mcpServers"`

	// Location is the file the config was loaded from.
	Location string `json:"-" yaml:"-" toml:"-"`
}

// DefaultLocations returns the locations searched when no config file is specified.
func DefaultLocations() []string {
	var list []string
	if home, err := os.UserHomeDir(); err == nil {
		list = append(list,
			filepath.Join(home, ".config", "mcp-client", "config.json"),
			filepath.Join(home, ".mcp-client.json"),
		)
	}
	return append(list, "mcp-client.json", "config.json")
}

// FindConfig returns the first existing file from locations.
func FindConfig(locations ...string) (string, error) {
	for _, loc := range locations {
		if st, err := os.Stat(loc); err == nil && !st.IsDir() {
			return loc, nil
		}
	}
	return "", errors.Mark(errors.Newf("no configuration file found in: %s", strings.Join(locations, ", ")), ErrConfiguration)
}

// LoadConfig loads the configuration from file,
// or from the first of DefaultLocations if file is empty.
// JSON and YAML files are expanded with environment variables,
// files with .toml extension are decoded as TOML.
func LoadConfig(file string) (*Config, error) {
	if file == "" {
		var err error
		file, err = FindConfig(DefaultLocations()...)
		if err != nil {
			return nil, err
		}
	}

	cfg := new(Config)
	var err error
	if strings.EqualFold(filepath.Ext(file), ".toml") {
		_, err = toml.DecodeFile(file, cfg)
	} else {
		err = configloader.UnmarshalAndExpand(file, cfg)
	}
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to load %s", file), ErrConfiguration)
	}
	if cfg.Servers == nil {
		return nil, errors.Mark(errors.Newf("%s: missing 'mcpServers' section", file), ErrConfiguration)
	}
	cfg.Location = file
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Server returns the validated configuration of the server.
func (c *Config) Server(id string) (*ServerConfig, error) {
	sc, ok := c.Servers[id]
	if !ok || sc == nil {
		return nil, errors.Mark(errors.Newf("server '%s' not found in configuration", id), ErrConfiguration)
	}
	if err := validate.Struct(sc); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "server '%s'", id), ErrConfiguration)
	}
	return sc, nil
}

// ServerIDs returns the sorted list of configured server ids.
func (c *Config) ServerIDs() []string {
	ids := make([]string, 0, len(c.Servers))
	for id := range c.Servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
