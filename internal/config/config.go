package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Panel   PanelConfig   `yaml:"panel"`
	Relay   RelayConfig   `yaml:"relay"`
	Diag    DiagConfig    `yaml:"diag"`
	Logging LoggingConfig `yaml:"logging"`
}

// PanelConfig describes how to reach the hosting panel. All values support
// ${VAR} expansion from the environment so secrets can stay out of the file.
type PanelConfig struct {
	APIURL         string        `yaml:"api_url"`
	WSSURL         string        `yaml:"wss_url"`
	ClientKey      string        `yaml:"client_key"`
	ApplicationKey string        `yaml:"application_key"`
	WingsToken     string        `yaml:"wings_token"`
	Origin         string        `yaml:"origin"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`
}

type RelayConfig struct {
	KeepaliveInterval  time.Duration `yaml:"keepalive_interval"`
	BackoffBase        time.Duration `yaml:"backoff_base"`
	BackoffMax         time.Duration `yaml:"backoff_max"`
	CredentialAttempts int           `yaml:"credential_attempts"`
	SendRate           float64       `yaml:"send_rate"`
	SendBurst          int           `yaml:"send_burst"`
}

type DiagConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

type LoggingConfig struct {
	Dir    string `yaml:"dir"`
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Panel: PanelConfig{
			HTTPTimeout: 30 * time.Second,
		},
		Relay: RelayConfig{
			KeepaliveInterval:  30 * time.Second,
			BackoffBase:        time.Second,
			BackoffMax:         30 * time.Second,
			CredentialAttempts: 3,
			SendRate:           10,
			SendBurst:          20,
		},
		Diag: DiagConfig{
			Host: "127.0.0.1",
			Port: 8190,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports missing required settings. The process must not start
// with an incomplete panel configuration.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"panel.api_url", c.Panel.APIURL},
		{"panel.wss_url", c.Panel.WSSURL},
		{"panel.client_key", c.Panel.ClientKey},
		{"panel.application_key", c.Panel.ApplicationKey},
		{"panel.wings_token", c.Panel.WingsToken},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.Relay.CredentialAttempts < 1 {
		return errors.New("config: relay.credential_attempts must be at least 1")
	}
	if c.Relay.BackoffBase <= 0 || c.Relay.BackoffMax < c.Relay.BackoffBase {
		return errors.New("config: relay backoff bounds are inverted")
	}
	return nil
}
