// Package config defines the application configuration: dataset location,
// render defaults, gateway, metrics and event bridge settings. Files load
// from JSON or YAML with defaults filled in, and SafeConfig guards shared
// access with validate-before-swap updates.
package config
