package tosig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultEndpointFormat = "tos-%s.volces.com"
	defaultTimeoutSeconds = 30
	defaultScheme         = "https"
)

// Config captures everything needed to construct a Client. All fields except
// Endpoint, Scheme, TimeoutSeconds and Debug are required.
type Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Scheme          string `yaml:"scheme"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	Debug           bool   `yaml:"debug"`
}

func (c *Config) applyDefaults() {
	if c.Endpoint == "" && c.Region != "" {
		c.Endpoint = fmt.Sprintf(defaultEndpointFormat, c.Region)
	}
	if c.Scheme == "" {
		c.Scheme = defaultScheme
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
}

func (c Config) validate() error {
	if c.Bucket == "" {
		return nestError(ErrConfigInvalid, "bucket is required")
	}
	if c.Region == "" {
		return nestError(ErrConfigInvalid, "region is required")
	}
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return nestError(ErrConfigInvalid, "credentials are required")
	}
	if c.Scheme != "http" && c.Scheme != "https" {
		return nestError(ErrConfigInvalid, "unsupported scheme %q", c.Scheme)
	}
	return nil
}

// LoadConfig reads a YAML configuration file and applies defaults.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, nestError(ErrConfigInvalid, "read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, nestError(ErrConfigInvalid, "parse %s: %w", path, err)
	}

	cfg.applyDefaults()

	return cfg, cfg.validate()
}
