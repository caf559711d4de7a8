// Package config loads and persists settings shared by the update-server
// binaries.
//
// Settings come from a YAML file (update-server-settings.yaml by default)
// with UPDATE_SERVER_* environment variables taking precedence over file
// values. Validate fills defaults for everything left unset, so a bare
// deployment serves ./releases on 0.0.0.0:5000 without any configuration.
package config
