// Package api defines the transport-friendly representations of audit runs
// and findings plus the service layer the HTTP server and CLI share.
package api
