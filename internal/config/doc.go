// Package config handles configuration loading for coven-recipient.
//
// # Overview
//
// Configuration is loaded from YAML (or TOML, for files ending in .toml)
// with environment variable expansion. The package fills in defaults and
// validates the result.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COVEN_RECIPIENT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/recipient.yaml
//  3. ~/.config/coven/recipient.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	wallet:
//	  address: "${COVEN_WALLET}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	resolver:
//	  timeout: "10s"
//	reachability:
//	  timeout: "10s"
//	  cache_ttl: "10m"
//
// # Configuration Sections
//
//	wallet:
//	  address: "0x..."            # the current user; required
//
//	directory:
//	  path: "~/.local/share/coven/directory.db"   # required
//	  seed_file: ""               # optional names/members seed applied on start
//
//	reachability:
//	  cache_size: 1024            # remembered reachable addresses
//
//	conversations:
//	  thread_id: ""               # scope new conversations to a thread
//
//	logging:
//	  level: "info"               # debug, info, warn, error
//	  format: "text"              # text or json
package config
