package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	uberconfig "go.uber.org/config"

	"github.com/julianstephens/habitkit/internal/constants"
	"github.com/julianstephens/habitkit/internal/events"
)

// Settings is the YAML settings file. Values may reference environment
// variables as ${NAME} or ${NAME:default}.
type Settings struct {
	Remote    RemoteConfig    `yaml:"remote"`
	Server    ServerConfig    `yaml:"server"`
	Events    EventsConfig    `yaml:"events"`
	Reminders RemindersConfig `yaml:"reminders"`
}

type RemoteConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	DatabaseURL string `yaml:"database_url"`
	JWTSecret   string `yaml:"jwt_secret"`
	Metrics     bool   `yaml:"metrics"`
}

type EventsConfig struct {
	Kafka events.KafkaConfig `yaml:"kafka"`
}

type RemindersConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Timezone string `yaml:"timezone"`
}

func Default() Settings {
	return Settings{
		Remote: RemoteConfig{Timeout: constants.DefaultRemoteTimeout * time.Second},
		Server: ServerConfig{Addr: constants.DefaultServerAddr, Metrics: true},
		Reminders: RemindersConfig{
			Enabled:  true,
			Timezone: "UTC",
		},
	}
}

// DefaultPath is the settings file inside the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	return filepath.Join(dir, constants.AppName, constants.ConfigFileName), nil
}

// Load reads path over the defaults. A missing file yields the defaults.
// Environment overrides are applied last.
func Load(path string) (Settings, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			provider, err := uberconfig.NewYAML(
				uberconfig.File(path),
				uberconfig.Expand(os.LookupEnv),
			)
			if err != nil {
				return Settings{}, fmt.Errorf("failed to read settings %s: %w", path, err)
			}
			if err := provider.Get(uberconfig.Root).Populate(&cfg); err != nil {
				return Settings{}, fmt.Errorf("failed to populate settings: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("failed to stat settings %s: %w", path, err)
		}
	}

	cfg.overrideFromEnv()
	return cfg, cfg.Validate()
}

func (c *Settings) overrideFromEnv() {
	if val := os.Getenv("HABITKIT_REMOTE_URL"); val != "" {
		c.Remote.URL = val
	}
	if val := os.Getenv("HABITKIT_DATABASE_URL"); val != "" {
		c.Server.DatabaseURL = val
	}
	if val := os.Getenv("HABITKIT_JWT_SECRET"); val != "" {
		c.Server.JWTSecret = val
	}
	if val := os.Getenv("HABITKIT_KAFKA_BROKERS"); val != "" {
		c.Events.Kafka.Brokers = strings.Split(val, ",")
	}
}

func (c Settings) Validate() error {
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote.timeout must be positive")
	}
	if _, err := time.LoadLocation(c.Reminders.Timezone); err != nil {
		return fmt.Errorf("reminders.timezone: %w", err)
	}
	return nil
}
