// ABOUTME: Configuration loading and parsing for coven-recipient
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/coven-recipient/internal/address"
)

// Defaults applied when a field is omitted.
const (
	DefaultResolverTimeout     = 10 * time.Second
	DefaultReachabilityTimeout = 10 * time.Second
	DefaultCacheTTL            = 10 * time.Minute
	DefaultCacheSize           = 1024
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
)

// Config represents the complete coven-recipient configuration
type Config struct {
	Wallet        WalletConfig        `yaml:"wallet" toml:"wallet"`
	Directory     DirectoryConfig     `yaml:"directory" toml:"directory"`
	Resolver      ResolverConfig      `yaml:"resolver" toml:"resolver"`
	Reachability  ReachabilityConfig  `yaml:"reachability" toml:"reachability"`
	Conversations ConversationsConfig `yaml:"conversations" toml:"conversations"`
	Logging       LoggingConfig       `yaml:"logging" toml:"logging"`
}

// WalletConfig identifies the current user
type WalletConfig struct {
	Address string `yaml:"address" toml:"address"`
}

// DirectoryConfig holds the local network directory settings
type DirectoryConfig struct {
	Path     string `yaml:"path" toml:"path"`
	SeedFile string `yaml:"seed_file" toml:"seed_file"` // applied on startup when set
}

// ResolverConfig holds name resolution settings
type ResolverConfig struct {
	Timeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// ReachabilityConfig holds network membership check settings
type ReachabilityConfig struct {
	Timeout  time.Duration `yaml:"-" toml:"-"`
	CacheTTL time.Duration `yaml:"-" toml:"-"`

	CacheSize int `yaml:"cache_size" toml:"cache_size"`

	// Raw string values for unmarshaling
	TimeoutRaw  string `yaml:"timeout" toml:"timeout"`
	CacheTTLRaw string `yaml:"cache_ttl" toml:"cache_ttl"`
}

// ConversationsConfig holds conversation creation settings
type ConversationsConfig struct {
	// ThreadID scopes new conversations to a thread; empty means the
	// default conversation with each peer
	ThreadID string `yaml:"thread_id" toml:"thread_id"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = "toml"
	}
	return Parse(data, format)
}

// Parse decodes configuration data in the given format ("yaml" or "toml"),
// applies defaults, and validates the result.
func Parse(data []byte, format string) (*Config, error) {
	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	switch format {
	case "toml":
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case "yaml", "":
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Resolver.Timeout == 0 {
		c.Resolver.Timeout = DefaultResolverTimeout
	}
	if c.Reachability.Timeout == 0 {
		c.Reachability.Timeout = DefaultReachabilityTimeout
	}
	if c.Reachability.CacheTTL == 0 {
		c.Reachability.CacheTTL = DefaultCacheTTL
	}
	if c.Reachability.CacheSize == 0 {
		c.Reachability.CacheSize = DefaultCacheSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Wallet.Address == "" {
		return fmt.Errorf("wallet.address is required")
	}
	if !address.IsValid(c.Wallet.Address) {
		return fmt.Errorf("wallet.address %q is not a valid address", c.Wallet.Address)
	}

	if c.Directory.Path == "" {
		return fmt.Errorf("directory.path is required")
	}

	if c.Resolver.Timeout < 0 {
		return fmt.Errorf("resolver.timeout must not be negative")
	}
	if c.Reachability.Timeout < 0 {
		return fmt.Errorf("reachability.timeout must not be negative")
	}
	if c.Reachability.CacheTTL < 0 {
		return fmt.Errorf("reachability.cache_ttl must not be negative")
	}
	if c.Reachability.CacheSize < 0 {
		return fmt.Errorf("reachability.cache_size must not be negative")
	}

	if strings.ContainsAny(c.Conversations.ThreadID, " \t\r\n") {
		return fmt.Errorf("conversations.thread_id must not contain whitespace")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Resolver.TimeoutRaw != "" {
		cfg.Resolver.Timeout, err = time.ParseDuration(cfg.Resolver.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing resolver.timeout %q: %w", cfg.Resolver.TimeoutRaw, err)
		}
	}

	if cfg.Reachability.TimeoutRaw != "" {
		cfg.Reachability.Timeout, err = time.ParseDuration(cfg.Reachability.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing reachability.timeout %q: %w", cfg.Reachability.TimeoutRaw, err)
		}
	}

	if cfg.Reachability.CacheTTLRaw != "" {
		cfg.Reachability.CacheTTL, err = time.ParseDuration(cfg.Reachability.CacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing reachability.cache_ttl %q: %w", cfg.Reachability.CacheTTLRaw, err)
		}
	}

	return nil
}
