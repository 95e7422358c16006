// Package findings persists audit runs and deduplicated findings in SQLite.
//
// Two tables back the audit pipeline: audit_runs holds one row per pipeline
// execution and audit_findings holds one row per detected defect, keyed by a
// deterministic fingerprint so that re-scanning the same defect never creates
// a duplicate row.
package findings
