// Package config persists user preferences for glimpse in a TOML file.
//
// Preferences are loaded once and owned by the caller (the library façade),
// which reads them when a thumbnail batch is launched. There is no
// package-level state: tests and tools may hold several Preferences values in
// one process.
package config
