// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testWallet = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "recipient.yaml", `
wallet:
  address: "`+testWallet+`"

directory:
  path: "./directory.db"
  seed_file: "./seed.yaml"

resolver:
  timeout: "3s"

reachability:
  timeout: "2s"
  cache_ttl: "1m"
  cache_size: 50

conversations:
  thread_id: "support"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Wallet.Address != testWallet {
		t.Errorf("Wallet.Address = %q, want %q", cfg.Wallet.Address, testWallet)
	}
	if cfg.Directory.Path != "./directory.db" {
		t.Errorf("Directory.Path = %q, want %q", cfg.Directory.Path, "./directory.db")
	}
	if cfg.Directory.SeedFile != "./seed.yaml" {
		t.Errorf("Directory.SeedFile = %q, want %q", cfg.Directory.SeedFile, "./seed.yaml")
	}
	if cfg.Resolver.Timeout != 3*time.Second {
		t.Errorf("Resolver.Timeout = %v, want %v", cfg.Resolver.Timeout, 3*time.Second)
	}
	if cfg.Reachability.Timeout != 2*time.Second {
		t.Errorf("Reachability.Timeout = %v, want %v", cfg.Reachability.Timeout, 2*time.Second)
	}
	if cfg.Reachability.CacheTTL != time.Minute {
		t.Errorf("Reachability.CacheTTL = %v, want %v", cfg.Reachability.CacheTTL, time.Minute)
	}
	if cfg.Reachability.CacheSize != 50 {
		t.Errorf("Reachability.CacheSize = %d, want %d", cfg.Reachability.CacheSize, 50)
	}
	if cfg.Conversations.ThreadID != "support" {
		t.Errorf("Conversations.ThreadID = %q, want %q", cfg.Conversations.ThreadID, "support")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_TOMLConfig(t *testing.T) {
	configPath := writeConfig(t, "recipient.toml", `
[wallet]
address = "`+testWallet+`"

[directory]
path = "/tmp/directory.db"

[reachability]
cache_ttl = "30s"
cache_size = 8

[logging]
level = "warn"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Directory.Path != "/tmp/directory.db" {
		t.Errorf("Directory.Path = %q, want %q", cfg.Directory.Path, "/tmp/directory.db")
	}
	if cfg.Reachability.CacheTTL != 30*time.Second {
		t.Errorf("Reachability.CacheTTL = %v, want %v", cfg.Reachability.CacheTTL, 30*time.Second)
	}
	if cfg.Reachability.CacheSize != 8 {
		t.Errorf("Reachability.CacheSize = %d, want %d", cfg.Reachability.CacheSize, 8)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}
	if cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, DefaultLogFormat)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, "recipient.yaml", `
wallet:
  address: "`+testWallet+`"
directory:
  path: "./directory.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Resolver.Timeout != DefaultResolverTimeout {
		t.Errorf("Resolver.Timeout = %v, want %v", cfg.Resolver.Timeout, DefaultResolverTimeout)
	}
	if cfg.Reachability.Timeout != DefaultReachabilityTimeout {
		t.Errorf("Reachability.Timeout = %v, want %v", cfg.Reachability.Timeout, DefaultReachabilityTimeout)
	}
	if cfg.Reachability.CacheTTL != DefaultCacheTTL {
		t.Errorf("Reachability.CacheTTL = %v, want %v", cfg.Reachability.CacheTTL, DefaultCacheTTL)
	}
	if cfg.Reachability.CacheSize != DefaultCacheSize {
		t.Errorf("Reachability.CacheSize = %d, want %d", cfg.Reachability.CacheSize, DefaultCacheSize)
	}
	if cfg.Conversations.ThreadID != "" {
		t.Errorf("Conversations.ThreadID = %q, want empty", cfg.Conversations.ThreadID)
	}
	if cfg.Logging.Level != DefaultLogLevel || cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("Logging = %+v, want level %q format %q", cfg.Logging, DefaultLogLevel, DefaultLogFormat)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_RECIPIENT_WALLET", testWallet)
	t.Setenv("TEST_RECIPIENT_DB", "/var/lib/coven/directory.db")

	configPath := writeConfig(t, "recipient.yaml", `
wallet:
  address: "${TEST_RECIPIENT_WALLET}"
directory:
  path: "${TEST_RECIPIENT_DB}"
conversations:
  thread_id: "${TEST_RECIPIENT_UNSET_THREAD}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Wallet.Address != testWallet {
		t.Errorf("Wallet.Address = %q, want %q", cfg.Wallet.Address, testWallet)
	}
	if cfg.Directory.Path != "/var/lib/coven/directory.db" {
		t.Errorf("Directory.Path = %q, want %q", cfg.Directory.Path, "/var/lib/coven/directory.db")
	}
	if cfg.Conversations.ThreadID != "" {
		t.Errorf("Conversations.ThreadID = %q, want empty for unset variable", cfg.Conversations.ThreadID)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("error = %v, want reading config file", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, "recipient.yaml", `
wallet:
  address: "`+testWallet+`"
directory:
  path: "./directory.db"
reachability:
  cache_ttl: "forever"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "reachability.cache_ttl") {
		t.Errorf("error = %v, want mention of reachability.cache_ttl", err)
	}
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse([]byte("{}"), "ini")
	if err == nil {
		t.Fatal("Parse() expected error for unsupported format")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Wallet:    WalletConfig{Address: testWallet},
			Directory: DirectoryConfig{Path: "./directory.db"},
			Logging:   LoggingConfig{Level: "info", Format: "text"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing wallet", mutate: func(c *Config) { c.Wallet.Address = "" }, wantErr: "wallet.address is required"},
		{name: "name as wallet", mutate: func(c *Config) { c.Wallet.Address = "alice.example" }, wantErr: "not a valid address"},
		{name: "missing directory", mutate: func(c *Config) { c.Directory.Path = "" }, wantErr: "directory.path is required"},
		{name: "negative timeout", mutate: func(c *Config) { c.Resolver.Timeout = -time.Second }, wantErr: "resolver.timeout"},
		{name: "negative cache size", mutate: func(c *Config) { c.Reachability.CacheSize = -1 }, wantErr: "cache_size"},
		{name: "thread with space", mutate: func(c *Config) { c.Conversations.ThreadID = "a b" }, wantErr: "thread_id"},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "trace" }, wantErr: "logging.level"},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
