package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// defaultDatabasePath is the sqlite file used when no connection URL is
// configured and no explicit path is given.
const defaultDatabasePath = "data/crm.db"

// Config represents the entire application configuration. All fields are
// optional; a zero-value config file (or none at all) produces a working
// single-user sqlite deployment.
type Config struct {
	// DatabaseURL selects the storage backend. A postgres:// or
	// postgresql:// URL selects the networked backend; anything else is
	// treated as an sqlite file path. Overridden by the POSTGRES_URL or
	// DATABASE_URL environment variables.
	DatabaseURL string `yaml:"database_url"`

	// DatabasePath is the sqlite file used when DatabaseURL is empty.
	DatabasePath string `yaml:"database_path"`

	// AccessPassword gates the whole application behind a single shared
	// password when non-empty. A bcrypt hash ("$2a$...") is compared with
	// bcrypt; anything else is compared as plaintext. Overridden by the
	// CRM_PASSWORD environment variable.
	AccessPassword string `yaml:"access_password"`

	CompanyName string    `yaml:"company_name"`
	Web         WebConfig `yaml:"web"`
}

// WebConfig holds settings specific to the web server.
type WebConfig struct {
	TemplatesPath   string `yaml:"templates_path"` // empty means embedded
	StaticPath      string `yaml:"static_path"`    // empty means embedded
	ListenAddress   string `yaml:"listen_address"`
	DevelopmentMode bool   `yaml:"development_mode"`
}

// Load loads and validates the configuration from the given file path. An
// empty path skips the file and builds the configuration from defaults and
// the environment alone.
func Load(filePath string) (*Config, error) {
	var cfg Config

	if filePath != "" {
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", filePath)
		}
		configFile, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(configFile, &cfg); err != nil {
			return nil, fmt.Errorf("unable to parse YAML config file: %w", err)
		}
	}

	applyEnv(&cfg)
	if err := validateAndPrepare(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays environment variables onto the file configuration. The
// environment wins, matching the original deployment model where the only
// configuration surface was a connection string secret.
func applyEnv(c *Config) {
	for _, key := range []string{"POSTGRES_URL", "DATABASE_URL"} {
		if v := os.Getenv(key); v != "" {
			c.DatabaseURL = v
			break
		}
	}
	if v := os.Getenv("CRM_PASSWORD"); v != "" {
		c.AccessPassword = v
	}
}

// validateAndPrepare checks fields and sets up derived values.
func validateAndPrepare(c *Config) error {
	if c.DatabasePath == "" {
		c.DatabasePath = defaultDatabasePath
	}
	if c.Web.ListenAddress == "" {
		c.Web.ListenAddress = ":8080"
	}
	if c.CompanyName == "" {
		c.CompanyName = "Rockland Concrete"
	}
	if c.DatabaseURL != "" && strings.ContainsAny(c.DatabaseURL, " \t\n") {
		return fmt.Errorf("database_url %q contains whitespace", c.DatabaseURL)
	}
	return nil
}

// GateEnabled reports whether the shared-password gate is active.
func (c *Config) GateEnabled() bool {
	return c.AccessPassword != ""
}
