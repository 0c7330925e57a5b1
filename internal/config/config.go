package config

// Configuration loading and validation for sftpsync

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/tturner/sftpsync/internal/errors"
)

// Settings holds the resolved process configuration. It is constructed
// once at startup and passed by value into handlers; nothing mutates it
// after Load returns.
type Settings struct {
	TargetHost     string        `yaml:"target_host"`
	TargetPort     int           `yaml:"target_port"`
	TargetUsername string        `yaml:"target_username"`
	TargetPassword string        `yaml:"target_password"`
	LocalPath      string        `yaml:"local_path"`
	RemotePath     string        `yaml:"remote_path"`
	IgnorePatterns []string      `yaml:"ignore_patterns"`
	KeyFile        string        `yaml:"key_file"`
	KnownHostsFile string        `yaml:"known_hosts_file"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	LogLevel       string        `yaml:"log_level"`
	LogFile        string        `yaml:"log_file"`
}

// envOverrides mirrors the original environment variable names. Pointer
// fields distinguish "unset" from "set to empty".
type envOverrides struct {
	TargetHost     *string        `envconfig:"TARGET_HOST"`
	TargetPort     *int           `envconfig:"TARGET_PORT"`
	TargetUsername *string        `envconfig:"TARGET_USERNAME"`
	TargetPassword *string        `envconfig:"TARGET_PASSWORD"`
	LocalPath      *string        `envconfig:"LOCAL_PATH"`
	RemotePath     *string        `envconfig:"REMOTE_PATH"`
	IgnorePatterns *string        `envconfig:"IGNORE_PATTERNS"`
	KeyFile        *string        `envconfig:"KEY_FILE"`
	KnownHostsFile *string        `envconfig:"KNOWN_HOSTS_FILE"`
	ConnectTimeout *time.Duration `envconfig:"CONNECT_TIMEOUT"`
	LogLevel       *string        `envconfig:"LOG_LEVEL"`
	LogFile        *string        `envconfig:"LOG_FILE"`
}

// Defaults returns the baseline settings before file and environment
// values are applied.
func Defaults() Settings {
	return Settings{
		TargetPort:     22,
		ConnectTimeout: 15 * time.Second,
		LogLevel:       "info",
	}
}

// Load builds Settings from an optional YAML file and the environment.
// Environment variables win over file values. configPath may be empty.
func Load(configPath string) (Settings, error) {
	s := Defaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return s, fmt.Errorf("read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	var ov envOverrides
	if err := envconfig.Process("", &ov); err != nil {
		return s, fmt.Errorf("read environment: %w", err)
	}
	applyOverrides(&s, ov)

	if s.TargetPort == 0 {
		s.TargetPort = 22
	}
	if s.ConnectTimeout <= 0 {
		s.ConnectTimeout = 15 * time.Second
	}

	return s, nil
}

func applyOverrides(s *Settings, ov envOverrides) {
	if ov.TargetHost != nil {
		s.TargetHost = *ov.TargetHost
	}
	if ov.TargetPort != nil {
		s.TargetPort = *ov.TargetPort
	}
	if ov.TargetUsername != nil {
		s.TargetUsername = *ov.TargetUsername
	}
	if ov.TargetPassword != nil {
		s.TargetPassword = *ov.TargetPassword
	}
	if ov.LocalPath != nil {
		s.LocalPath = *ov.LocalPath
	}
	if ov.RemotePath != nil {
		s.RemotePath = *ov.RemotePath
	}
	if ov.IgnorePatterns != nil {
		s.IgnorePatterns = ParsePatterns(*ov.IgnorePatterns)
	}
	if ov.KeyFile != nil {
		s.KeyFile = *ov.KeyFile
	}
	if ov.KnownHostsFile != nil {
		s.KnownHostsFile = *ov.KnownHostsFile
	}
	if ov.ConnectTimeout != nil {
		s.ConnectTimeout = *ov.ConnectTimeout
	}
	if ov.LogLevel != nil {
		s.LogLevel = *ov.LogLevel
	}
	if ov.LogFile != nil {
		s.LogFile = *ov.LogFile
	}
}

// ParsePatterns decodes a JSON-encoded pattern list. Malformed input
// degrades to an empty list rather than failing startup.
func ParsePatterns(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var patterns []string
	if err := json.Unmarshal([]byte(raw), &patterns); err != nil {
		return nil
	}
	return patterns
}

// Validate checks that the settings required to open a connection are
// present. Called before any network attempt.
func (s Settings) Validate() error {
	if s.TargetHost == "" || s.TargetUsername == "" || s.TargetPassword == "" {
		return errors.Configuration("missing required SFTP connection parameters (TARGET_HOST, TARGET_USERNAME, TARGET_PASSWORD)")
	}
	if s.TargetPort <= 0 || s.TargetPort > 65535 {
		return errors.Configuration("invalid TARGET_PORT: %d", s.TargetPort)
	}
	return nil
}

// Snapshot is the redacted configuration view exposed to the agent.
// The secret is never included.
type Snapshot struct {
	Host             string   `json:"host"`
	Port             int      `json:"port"`
	Username         string   `json:"username"`
	LocalPath        string   `json:"local_path"`
	RemotePath       string   `json:"remote_path"`
	IgnorePatterns   []string `json:"ignore_patterns"`
	ConnectionStatus string   `json:"connection_status"`
}

// Redacted returns the settings snapshot safe to hand back to a caller.
func (s Settings) Redacted() Snapshot {
	status := "incomplete"
	if s.TargetHost != "" && s.TargetUsername != "" && s.TargetPassword != "" {
		status = "configured"
	}
	return Snapshot{
		Host:             s.TargetHost,
		Port:             s.TargetPort,
		Username:         s.TargetUsername,
		LocalPath:        s.LocalPath,
		RemotePath:       s.RemotePath,
		IgnorePatterns:   s.IgnorePatterns,
		ConnectionStatus: status,
	}
}
