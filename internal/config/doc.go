// Package config handles configuration loading for appland.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// Unset fields get defaults, then the result is validated.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from APPLAND_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/appland/config.yaml
//  3. ~/.config/appland/config.yaml
//
// A .env file in the working directory is loaded before the config file, so
// ${VAR} references can be satisfied locally.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	store:
//	  dsn: "${APPLAND_DATABASE_URL}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	views:
//	  idle_ttl: "30m"
//
// # Example Configuration
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	store:
//	  backend: "sqlite"            # sqlite, postgres, memory
//	  path: "/var/lib/appland/appland.db"
//	  poll_interval: "5s"          # postgres only
//	marker:
//	  path: "/var/lib/appland/marker.toml"
//	admin:
//	  password: "0807"
//	views:
//	  idle_ttl: "30m"
//	  max_views: 256
//	clock:
//	  time_zone: "Asia/Tokyo"
//	logging:
//	  level: "info"
//	  format: "text"
package config
