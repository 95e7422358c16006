// Package audit orchestrates the content audit pipeline: an ordered sequence
// of scan stages executed in the background against the legal corpus, with
// findings persisted after every stage, fixed progress milestones, a
// single-flight guard derived from the findings store, and a best-effort
// AI executive summary at the end.
package audit
