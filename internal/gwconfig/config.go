// Package gwconfig loads the gateway's environment-variable configuration,
// read once at process startup.
package gwconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the gateway's startup configuration, read once from the
// environment (optionally pre-loaded from an env file).
type Config struct {
	Host             string
	Port             int
	Secret           string
	DisableTLSVerify bool
	ProvidersDir     string
	LogDir           string
	LogToFile        bool
}

const (
	defaultHost         = "0.0.0.0"
	defaultPort         = 8080
	defaultProvidersDir = "providers"
)

// Load pre-loads an env file (PLURIBUS_ENV_FILE, default ".env" in the
// working directory; a missing default file is not an error) and then reads
// the gateway's environment variables.
func Load() (*Config, error) {
	envFile := os.Getenv("PLURIBUS_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	// The env file is pure convenience; a missing one (the common case for
	// the default ".env") is never fatal.
	_ = godotenv.Load(envFile)

	cfg := &Config{
		Host:         defaultHost,
		Port:         defaultPort,
		ProvidersDir: defaultProvidersDir,
	}

	if host := os.Getenv("PLURIBUS_HOST"); host != "" {
		cfg.Host = host
	}

	if portStr := os.Getenv("PLURIBUS_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("gwconfig: invalid PLURIBUS_PORT %q: %w", portStr, err)
		}
		cfg.Port = port
	}

	cfg.Secret = os.Getenv("PLURIBUS_SECRET")
	if cfg.Secret == "" {
		return nil, fmt.Errorf("gwconfig: PLURIBUS_SECRET is required")
	}

	disable := strings.ToLower(strings.TrimSpace(os.Getenv("PLURIBUS_DISABLE_TLS_VERIFY")))
	cfg.DisableTLSVerify = disable == "1" || disable == "true"

	if dir := os.Getenv("PLURIBUS_LOG_DIR"); dir != "" {
		cfg.LogDir = dir
		cfg.LogToFile = true
	}

	return cfg, nil
}

// Addr formats the listen address for net/http.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
