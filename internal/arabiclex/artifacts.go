package arabiclex

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ArtifactKind names one class of leftover OCR damage.
type ArtifactKind string

const (
	ArtifactTatweelRun    ArtifactKind = "tatweel_run"
	ArtifactMixedScript   ArtifactKind = "mixed_script"
	ArtifactMalformedDate ArtifactKind = "malformed_hijri_date"
	ArtifactPageBreak     ArtifactKind = "page_break"
	ArtifactDiacriticRun  ArtifactKind = "diacritic_run"
)

// Artifact is one detected OCR residue with a short sample for triage.
type Artifact struct {
	Kind   ArtifactKind
	Sample string
}

var (
	tatweelRunRE = regexp.MustCompile(`ـ{3,}`)
	latinWordRE  = regexp.MustCompile(`[A-Za-z]{2,}`)
	arabicCharRE = regexp.MustCompile(`\p{Arabic}`)
	// Hijri-style date triplets, in either digit system.
	hijriDateRE  = regexp.MustCompile(`([٠-٩0-9]{1,2})[/\-.]([٠-٩0-9]{1,2})[/\-.](1[34][٠-٩0-9]{2}|[٠-٩0-9]{4})`)
	hijriMisread = regexp.MustCompile(`[٠-٩0-9]{4}\s*هو(\s|$)`)
	pageBreakRE  = regexp.MustCompile(`\f|-{2,}\s*[Pp]age\s+\d+\s*-{2,}|={2,}\s*صفحة\s*[٠-٩0-9]+`)
	diacriticRE  = regexp.MustCompile(`[\x{064B}-\x{065F}\x{0670}]{3,}`)
)

// Technical acronyms tolerated inside Arabic legal text.
var latinAllowlist = map[string]struct{}{
	"PDF": {}, "HTML": {}, "URL": {}, "ISO": {}, "OCR": {},
	"API": {}, "HTTP": {}, "HTTPS": {}, "WWW": {}, "GPS": {},
	"DNA": {}, "VAT": {},
}

// DetectArtifacts scans text for leftover OCR damage and returns at most one
// artifact per kind, each with a short sample of the offending text.
func DetectArtifacts(text string) []Artifact {
	var artifacts []Artifact

	if m := tatweelRunRE.FindString(text); m != "" {
		artifacts = append(artifacts, Artifact{Kind: ArtifactTatweelRun, Sample: clip(m)})
	}
	if sample := mixedScriptSample(text); sample != "" {
		artifacts = append(artifacts, Artifact{Kind: ArtifactMixedScript, Sample: clip(sample)})
	}
	if sample := malformedHijriSample(text); sample != "" {
		artifacts = append(artifacts, Artifact{Kind: ArtifactMalformedDate, Sample: clip(sample)})
	}
	if m := pageBreakRE.FindString(text); m != "" {
		sample := m
		if sample == "\f" {
			sample = "\\f"
		}
		artifacts = append(artifacts, Artifact{Kind: ArtifactPageBreak, Sample: clip(sample)})
	}
	if m := diacriticRE.FindString(text); m != "" {
		artifacts = append(artifacts, Artifact{Kind: ArtifactDiacriticRun, Sample: clip(m)})
	}
	return artifacts
}

func mixedScriptSample(text string) string {
	if !arabicCharRE.MatchString(text) {
		return ""
	}
	for _, word := range latinWordRE.FindAllString(text, -1) {
		if _, ok := latinAllowlist[strings.ToUpper(word)]; ok {
			continue
		}
		return word
	}
	return ""
}

func malformedHijriSample(text string) string {
	for _, m := range hijriDateRE.FindAllStringSubmatch(text, -1) {
		day, _ := strconv.Atoi(NormalizeDigits(m[1]))
		month, _ := strconv.Atoi(NormalizeDigits(m[2]))
		// Hijri months never exceed 12 and days never exceed 30.
		if month > 12 || day > 30 || month == 0 || day == 0 {
			return m[0]
		}
	}
	if m := hijriMisread.FindString(text); m != "" {
		return m
	}
	return ""
}

func clip(s string) string {
	const limit = 60
	r := []rune(strings.TrimSpace(s))
	if len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return string(r)
}

var placeholderRE = regexp.MustCompile(`(?i)\bTODO\b|\bFIXME\b|\.{3,}|غير\s+متوفر|يُضاف\s+لاحقًا`)

// HasPlaceholder reports whether text contains draft/placeholder markers
// rather than final legal language.
func HasPlaceholder(text string) bool {
	return placeholderRE.MatchString(NormalizeDigits(text))
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripDiacritics removes Arabic diacritical marks (tashkeel) from text.
func StripDiacritics(text string) string {
	stripped, _, err := transform.String(stripMarks, text)
	if err != nil {
		return text
	}
	return stripped
}
