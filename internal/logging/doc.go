// Package logging builds the slog loggers used across marsad and defines the
// standardized attribute keys shared by the daemon, the audit pipeline, and
// the CLI.
package logging
