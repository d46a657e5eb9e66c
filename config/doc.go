// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the protection-layer configuration
// structure: registry windows and cooldowns, circuit-breaker depth bounds,
// telemetry buffering, and server/logging settings.
package config
