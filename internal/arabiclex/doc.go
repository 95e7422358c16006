// Package arabiclex holds the Arabic linguistic pattern tables shared by the
// structural, content, reference, and AI scan stages: article ordinal words,
// Arabic-Indic digit normalization, cross-reference extraction, and the OCR
// artifact detectors. Keeping one copy here prevents the reference tables
// from drifting between stages.
package arabiclex
