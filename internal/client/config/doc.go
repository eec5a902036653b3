// Package config loads runtime configuration for the listvault CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the backend service
//	-i int      connectivity probe interval (seconds)
//	-d string   path of the local database file
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_addr": "http://127.0.0.1:8080",
//	  "probe_interval": "3s",
//	  "database_path": "listvault.db"
//	}
//
// Note: This package does not read environment variables; use the JSON file
// or flags to configure values.
package config
