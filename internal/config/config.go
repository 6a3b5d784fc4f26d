package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "switchpac.yaml"

type Config struct {
	Database   DatabaseConfig    `yaml:"database"`
	Pac        PacConfig         `yaml:"pac"`
	Fetch      FetchConfig       `yaml:"fetch"`
	Publishers []PublisherConfig `yaml:"publishers"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type PacConfig struct {
	Entry    string `yaml:"entry"`    // Profile compiled by default
	Comments bool   `yaml:"comments"` // Annotate generated scripts
}

type FetchConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	Retries  int           `yaml:"retries"`
	ProxyURL string        `yaml:"proxy_url"` // http(s):// or socks5:// upstream for downloads
	Workers  int           `yaml:"workers"`
}

type PublisherConfig struct {
	Name   string                 `yaml:"name"`
	Type   string                 `yaml:"type"`
	Entry  string                 `yaml:"entry"` // Overrides pac.entry
	Params map[string]interface{} `yaml:"params"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "switchpac.db"},
		Pac:      PacConfig{Entry: "auto", Comments: true},
		Fetch: FetchConfig{
			Timeout: 30 * time.Second,
			Retries: 1,
			Workers: 4,
		},
		Publishers: []PublisherConfig{
			{Name: "out", Type: "file", Params: map[string]interface{}{"path": "proxy.pac"}},
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is
// only an error when path was given explicitly.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	// Publishers listed in the file replace the default list.
	cfg.Publishers = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	if cfg.Fetch.Workers <= 0 {
		cfg.Fetch.Workers = 1
	}
	if cfg.Fetch.Retries < 0 {
		cfg.Fetch.Retries = 0
	}
	if cfg.Fetch.Timeout <= 0 {
		cfg.Fetch.Timeout = 30 * time.Second
	}
	for i, p := range cfg.Publishers {
		if p.Name == "" {
			cfg.Publishers[i].Name = p.Type
		}
	}

	return cfg, nil
}

func (c *Config) FilterPublishers(names []string) {
	if len(names) == 0 {
		return
	}
	whitelist := make(map[string]bool)
	for _, n := range names {
		whitelist[n] = true
	}
	var filtered []PublisherConfig
	for _, item := range c.Publishers {
		if whitelist[item.Name] {
			filtered = append(filtered, item)
		}
	}
	c.Publishers = filtered
}
