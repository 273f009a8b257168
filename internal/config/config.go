// Package config carries the runtime settings for the chat service.
// Precedence is file over environment over built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Chat     *ChatConfig     `json:"chat"`
	Database *DatabaseConfig `json:"database"`
	HTTP     *HTTPConfig     `json:"http"`
}

// ChatConfig addresses the line-protocol listener.
type ChatConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseConfig locates the credential database.
type DatabaseConfig struct {
	Path        string        `json:"path"`
	BusyTimeout time.Duration `json:"busy_timeout"`
}

// HTTPConfig addresses the admin endpoint that serves health, stats,
// metrics, and the WebSocket transport.
type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DefaultConfig returns the settings the service has historically run
// with: chat on 12345, credentials in db/password.db.
func DefaultConfig() *Config {
	return &Config{
		Chat: &ChatConfig{
			Host: "0.0.0.0",
			Port: 12345,
		},
		Database: &DatabaseConfig{
			Path:        "db/password.db",
			BusyTimeout: 5 * time.Second,
		},
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Validate rejects configurations that cannot start. Port 0 is allowed;
// it requests an ephemeral port, which test fixtures rely on.
func (c *Config) Validate() error {
	if c.Chat == nil {
		return fmt.Errorf("chat configuration is required")
	}
	if c.Chat.Host == "" {
		return fmt.Errorf("chat host cannot be empty")
	}
	if c.Chat.Port < 0 || c.Chat.Port > 65535 {
		return fmt.Errorf("chat port must be between 0 and 65535")
	}

	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.BusyTimeout <= 0 {
		return fmt.Errorf("database busy timeout must be positive")
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 0 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}

	return nil
}

// LoadFromEnv overlays PARLEY_* environment variables on the defaults.
// Unparseable values fall back silently.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if host := os.Getenv("PARLEY_CHAT_HOST"); host != "" {
		config.Chat.Host = host
	}
	if port := os.Getenv("PARLEY_CHAT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Chat.Port = p
		}
	}

	if path := os.Getenv("PARLEY_DATABASE_PATH"); path != "" {
		config.Database.Path = path
	}
	if busyTimeout := os.Getenv("PARLEY_DATABASE_BUSY_TIMEOUT"); busyTimeout != "" {
		if timeout, err := time.ParseDuration(busyTimeout); err == nil {
			config.Database.BusyTimeout = timeout
		}
	}

	if host := os.Getenv("PARLEY_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if port := os.Getenv("PARLEY_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if readTimeout := os.Getenv("PARLEY_HTTP_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.HTTP.ReadTimeout = timeout
		}
	}
	if writeTimeout := os.Getenv("PARLEY_HTTP_WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			config.HTTP.WriteTimeout = timeout
		}
	}

	return config
}

// ConfigFile mirrors Config for JSON parsing; durations are strings in
// the file format.
type ConfigFile struct {
	Chat     *ChatConfigFile     `json:"chat"`
	Database *DatabaseConfigFile `json:"database"`
	HTTP     *HTTPConfigFile     `json:"http"`
}

type ChatConfigFile struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type DatabaseConfigFile struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout"`
}

type HTTPConfigFile struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

// LoadFromFile reads a JSON configuration file over the defaults.
func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	config := DefaultConfig()

	if configFile.Chat != nil {
		if configFile.Chat.Host != "" {
			config.Chat.Host = configFile.Chat.Host
		}
		if configFile.Chat.Port > 0 {
			config.Chat.Port = configFile.Chat.Port
		}
	}

	if configFile.Database != nil {
		if configFile.Database.Path != "" {
			config.Database.Path = configFile.Database.Path
		}
		if configFile.Database.BusyTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.Database.BusyTimeout); err == nil {
				config.Database.BusyTimeout = timeout
			}
		}
	}

	if configFile.HTTP != nil {
		if configFile.HTTP.Host != "" {
			config.HTTP.Host = configFile.HTTP.Host
		}
		if configFile.HTTP.Port > 0 {
			config.HTTP.Port = configFile.HTTP.Port
		}
		if configFile.HTTP.ReadTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.HTTP.ReadTimeout); err == nil {
				config.HTTP.ReadTimeout = timeout
			}
		}
		if configFile.HTTP.WriteTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.HTTP.WriteTimeout); err == nil {
				config.HTTP.WriteTimeout = timeout
			}
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}

	return config, nil
}

// LoadConfigWithPrecedence builds the effective configuration: file over
// environment over defaults. A missing or broken file is ignored so the
// environment and defaults still apply.
func LoadConfigWithPrecedence(filepath string) *Config {
	config := LoadFromEnv()

	if filepath != "" {
		if fileConfig, err := LoadFromFile(filepath); err == nil {
			config = fileConfig
		}
	}

	return config
}
