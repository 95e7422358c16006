// Package main hosts the marsad CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the audit daemon: triggering runs, polling run status,
// browsing and triaging findings, and configuration scaffolding. It
// centralizes configuration resolution and client construction so
// subcommands can focus on user experience instead of wiring.
package main
