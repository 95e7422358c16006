package arabiclex

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Ordinal pairs an Arabic ordinal word form with its numeric value.
type Ordinal struct {
	Text  string
	Value int
}

var ordinalOnes = []Ordinal{
	{"الحادية", 1}, {"الثانية", 2}, {"الثالثة", 3}, {"الرابعة", 4},
	{"الخامسة", 5}, {"السادسة", 6}, {"السابعة", 7}, {"الثامنة", 8},
	{"التاسعة", 9},
}

var ordinalTens = []Ordinal{
	{"العشرون", 20}, {"الثلاثون", 30}, {"الأربعون", 40}, {"الخمسون", 50},
	{"الستون", 60}, {"السبعون", 70}, {"الثمانون", 80}, {"التسعون", 90},
	{"المائة", 100},
}

// Ordinals is the closed set of recognized article ordinal word forms,
// sorted longest-first so compound forms match before their prefixes
// (e.g. "الحادية عشرة" before "الحادية", "الثانية والعشرون" before "الثانية").
var Ordinals = buildOrdinals()

func buildOrdinals() []Ordinal {
	var all []Ordinal
	for _, one := range ordinalOnes {
		// 11-19: الحادية عشرة .. التاسعة عشرة
		all = append(all, Ordinal{one.Text + " عشرة", one.Value + 10})
		// 21-29, 31-39, ...: الحادية والعشرون etc.
		for _, ten := range ordinalTens {
			if ten.Value == 100 {
				continue
			}
			all = append(all, Ordinal{one.Text + " و" + ten.Text, one.Value + ten.Value})
		}
	}
	all = append(all, ordinalTens...)
	all = append(all,
		Ordinal{"الأولى", 1}, Ordinal{"الثانية", 2}, Ordinal{"الثالثة", 3},
		Ordinal{"الرابعة", 4}, Ordinal{"الخامسة", 5}, Ordinal{"السادسة", 6},
		Ordinal{"السابعة", 7}, Ordinal{"الثامنة", 8}, Ordinal{"التاسعة", 9},
		Ordinal{"العاشرة", 10},
	)
	sort.SliceStable(all, func(i, j int) bool {
		return len(all[i].Text) > len(all[j].Text)
	})
	return all
}

var arabicIndicDigits = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
)

// NormalizeDigits converts Arabic-Indic digits to Western digits.
func NormalizeDigits(text string) string {
	return arabicIndicDigits.Replace(text)
}

var digitRunRE = regexp.MustCompile(`[0-9]+`)

// ParseNumber converts Arabic ordinal or numeral text to its numeric value.
// Diacritics are stripped first so OCR text with tashkeel still matches the
// ordinal table, which is consulted longest-pattern-first; when no word form
// matches, the first digit run (Arabic-Indic or Western) is used.
func ParseNumber(text string) (int, bool) {
	trimmed := strings.TrimSpace(StripDiacritics(text))
	if trimmed == "" {
		return 0, false
	}
	for _, ord := range Ordinals {
		if strings.Contains(trimmed, ord.Text) {
			return ord.Value, true
		}
	}
	if match := digitRunRE.FindString(NormalizeDigits(trimmed)); match != "" {
		n, err := strconv.Atoi(match)
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

// ArticleRef is one intra-document cross-reference found in article text.
type ArticleRef struct {
	Number int
	Text   string
}

var articleRefRE = buildArticleRefRE()

func buildArticleRefRE() *regexp.Regexp {
	words := make([]string, 0, len(Ordinals))
	for _, ord := range Ordinals {
		words = append(words, regexp.QuoteMeta(ord.Text))
	}
	// Alternatives are ordered longest-first; Go's regexp prefers earlier
	// alternatives, so compound ordinals win over their prefixes.
	pattern := `المادة\s+[\(]?\s*(` + strings.Join(words, "|") + `|[٠-٩0-9]+)\s*[\)]?`
	return regexp.MustCompile(pattern)
}

// ArticleReferences extracts every "Article N" cross-reference in text, in
// both numeric and ordinal-word form. Matching runs over diacritic-stripped
// text: published judgments frequently carry partial tashkeel around the
// word المادة that would otherwise break the reference pattern.
func ArticleReferences(text string) []ArticleRef {
	matches := articleRefRE.FindAllStringSubmatch(StripDiacritics(text), -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]ArticleRef, 0, len(matches))
	for _, m := range matches {
		number, ok := ParseNumber(m[1])
		if !ok {
			continue
		}
		refs = append(refs, ArticleRef{Number: number, Text: strings.TrimSpace(m[0])})
	}
	return refs
}
