// Package ai wraps the generative-AI provider used by the audit pipeline's
// quality stages and the executive summary. The gateway owns the resilience
// policy: per-call timeout, bounded retry with exponential backoff and
// jitter, tolerance for malformed provider output, and fallback to a second
// provider when one is configured.
package ai
