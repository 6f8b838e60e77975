// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// The API base address additionally falls back to QUOTESYNC_API_URL and then to
// a same-host default when the file leaves it empty.
package config
