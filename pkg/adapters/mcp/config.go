package mcp

import (
	"encoding/json"
	"fmt"
	"os"
)

// SSECommand marks a server entry whose first argument is an SSE URL.
const SSECommand = "sse_server"

// Config lists MCP servers by name.
type Config struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// ServerConfig describes how to reach one server.
type ServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

// LoadConfig reads a JSON server list from filename.
func LoadConfig(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", filename, err)
	}

	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return &cfg, nil
}

// Server returns the named entry.
func (c *Config) Server(name string) (ServerConfig, error) {
	sc, ok := c.MCPServers[name]
	if !ok {
		return ServerConfig{}, fmt.Errorf("mcp server %q not configured", name)
	}
	return sc, nil
}

func (sc ServerConfig) env() []string {
	var env []string
	for k, v := range sc.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
