// Package config loads and hot-reloads the broker's language-server configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LanguageServerConfig describes how to spawn and configure the server for
// one language id.
type LanguageServerConfig struct {
	Command            string   `yaml:"command"`
	Args               []string `yaml:"args"`
	AllowedDirectories []string `yaml:"allowed_directories,omitempty"`
	Autostart          bool     `yaml:"autostart,omitempty"`
	AutostartRoot      string   `yaml:"autostart_root,omitempty"`
}

// DockerPathMapping optionally translates buffer paths between a host
// filesystem and a container filesystem before they are opened.
type DockerPathMapping struct {
	HostRoot      string `yaml:"host_root"`
	ContainerRoot string `yaml:"container_root"`
}

// Config is the broker's top-level configuration document.
type Config struct {
	LogLevel             string                          `yaml:"log_level"`
	Language             map[string]LanguageServerConfig `yaml:"language"`
	ExtensionLanguageMap map[string]string               `yaml:"extension_language_map,omitempty"`
	DockerPathMapping    *DockerPathMapping              `yaml:"docker_path_mapping,omitempty"`
}

// LanguageForExtension resolves a file extension (without the leading dot)
// to a language id via the configured extension map, falling back to
// treating the extension itself as the language id.
func (c *Config) LanguageForExtension(ext string) string {
	if c != nil {
		if lang, ok := c.ExtensionLanguageMap[ext]; ok {
			return lang
		}
	}
	return ext
}

// Load reads and parses a YAML configuration file, expanding ${VAR}
// references in each server's args against the process environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides expands ${VAR_NAME} placeholders in every language
// server's args against the process environment. Unset variables are left
// as literal placeholders.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil || cfg.Language == nil {
		return
	}
	for id, server := range cfg.Language {
		server.Args = expandEnvVarsInArgs(server.Args)
		cfg.Language[id] = server
	}
}

func expandEnvVarsInArgs(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		result[i] = os.Expand(arg, func(key string) string {
			if val, ok := os.LookupEnv(key); ok {
				return val
			}
			return "${" + key + "}"
		})
	}
	return result
}

// ServerFor resolves the language server configuration for a language id.
// ok is false when no server is configured for that language — the
// condition the router treats as a configuration miss.
func (c *Config) ServerFor(languageID string) (LanguageServerConfig, bool) {
	if c == nil {
		return LanguageServerConfig{}, false
	}
	server, ok := c.Language[strings.ToLower(languageID)]
	return server, ok
}
