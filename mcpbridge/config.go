package mcpbridge

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/configloader"
)

// ServerConfig describes one external tool server. A server is reached
// either by spawning a subprocess speaking MCP over stdio (Command set) or
// over HTTP (URL set); exactly one of the two must be configured.
type ServerConfig struct {
	// Name uniquely identifies the server; it prefixes every tool the
	// server exposes.
	Name string `json:"name" yaml:"name"`

	// Command is the executable to spawn for a stdio server.
	Command string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
	Env     []string `json:"env,omitempty" yaml:"env,omitempty"`

	// URL is the base URL of an HTTP server, e.g. http://localhost:8081.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
	// Endpoint is the HTTP path of the MCP endpoint, default "/mcp".
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// Validate checks the config is usable.
func (c *ServerConfig) Validate() error {
	if c.Name == "" {
		return errors.New("server name is required")
	}
	if c.Command == "" && c.URL == "" {
		return errors.Errorf("server %s: either command or url is required", c.Name)
	}
	if c.Command != "" && c.URL != "" {
		return errors.Errorf("server %s: command and url are mutually exclusive", c.Name)
	}
	return nil
}

// Config lists the tool servers to connect on startup.
type Config struct {
	Servers []ServerConfig `json:"servers" yaml:"servers"`
}

// LoadConfig loads the tool-server config from a YAML or JSON file, with
// environment variable expansion.
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	for i := range cfg.Servers {
		if err := cfg.Servers[i].Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
