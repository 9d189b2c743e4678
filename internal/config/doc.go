// Package config provides configuration loading and validation for the
// stream viewer service. It handles YAML-based configuration with defaults
// for every section, so a missing file or empty document still yields a
// runnable setup.
package config
