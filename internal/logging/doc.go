// Package logging provides the leveled logger shared by the glimpse service,
// the operator CLI and the background thumbnail workers.
//
// Levels, from most to least verbose:
//   - DEBUG: per-file decode and cache decisions
//   - INFO: folder opens, batch start/finish, configuration
//   - WARN: recoverable per-file failures
//   - ERROR: failed requests and store errors
//   - FATAL: startup failures that terminate the process
//
// The level comes from DEBUG (any truthy value selects debug) or LOG_LEVEL,
// and can be overridden at runtime with SetLevel.
package logging
