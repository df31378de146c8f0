package platform

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read from the working directory when no path is given.
const DefaultConfigFile = "notely.yaml"

// EnvPrefix prefixes every environment override, e.g. NOTELY_ADDR.
const EnvPrefix = "NOTELY_"

// Config is the process configuration shared by the CLI commands.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures `notely serve` and the commands that open storage directly.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	Adapter        string        `yaml:"adapter"`
	Vault          string        `yaml:"vault"`
	DatabaseURL    string        `yaml:"database_url"`
	Gitless        bool          `yaml:"gitless"`
	ReadOnly       bool          `yaml:"read_only"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	PageSize       int           `yaml:"page_size"`
	SecureCookies  bool          `yaml:"secure_cookies"`
}

// ClientConfig configures the commands that talk to a running server.
type ClientConfig struct {
	BaseURL   string        `yaml:"base_url"`
	TokenPath string        `yaml:"token_path"`
	Debounce  time.Duration `yaml:"debounce"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8000",
			Adapter:        AdapterFS,
			Vault:          "./vault",
			SessionTTL:     14 * 24 * time.Hour,
			AllowedOrigins: []string{"http://localhost:3000"},
			PageSize:       100,
		},
		Client: ClientConfig{
			BaseURL:  "http://localhost:8000/api",
			Debounce: 500 * time.Millisecond,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// URI returns the storage location for the configured adapter.
func (c ServerConfig) URI() string {
	if c.Adapter == AdapterPostgres {
		return c.DatabaseURL
	}
	return c.Vault
}

// LoadConfig layers the configuration: defaults, then the YAML file, then
// NOTELY_* variables from the environment or the given .env files (real
// environment variables win). An empty path reads DefaultConfigFile if it
// exists; an explicit path must exist. Missing .env files are skipped.
func LoadConfig(path string, envFiles ...string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	dotenv, err := readEnvFiles(envFiles)
	if err != nil {
		return cfg, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func readEnvFiles(files []string) (map[string]string, error) {
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return map[string]string{}, nil
	}
	env, err := godotenv.Read(present...)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}
	return env, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("ADDR", &c.Server.Addr)
	str("ADAPTER", &c.Server.Adapter)
	str("VAULT", &c.Server.Vault)
	str("DATABASE_URL", &c.Server.DatabaseURL)
	boolean("GITLESS", &c.Server.Gitless)
	boolean("READ_ONLY", &c.Server.ReadOnly)
	boolean("SECURE_COOKIES", &c.Server.SecureCookies)
	duration("SESSION_TTL", &c.Server.SessionTTL)
	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "PAGE_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPAGE_SIZE: %w", EnvPrefix, err))
		} else {
			c.Server.PageSize = n
		}
	}

	str("API", &c.Client.BaseURL)
	str("TOKEN_PATH", &c.Client.TokenPath)
	duration("DEBOUNCE", &c.Client.Debounce)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	return errors.Join(errs...)
}

// Validate rejects settings no command can run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Server.Adapter {
	case AdapterFS, AdapterPostgres:
	default:
		errs = append(errs, fmt.Errorf("server.adapter: unknown adapter %q", c.Server.Adapter))
	}
	if c.Server.SessionTTL <= 0 {
		errs = append(errs, errors.New("server.session_ttl: must be positive"))
	}
	if c.Server.PageSize <= 0 {
		errs = append(errs, errors.New("server.page_size: must be positive"))
	}
	if c.Client.Debounce <= 0 {
		errs = append(errs, errors.New("client.debounce: must be positive"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
