// Package daemon hosts the long-running audit service: single-instance
// enforcement via a lock file, the HTTP control surface, and lifecycle
// management for the findings store and orchestrator.
package daemon
