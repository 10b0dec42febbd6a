package metadata

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"paperalchemist/internal/entity"
)

// Rule-based extraction is the baseline path. It works on raw text alone
// and must produce something sensible with every backend offline.

var (
	doiPattern  = regexp.MustCompile(`(?i)doi:\s*(10\.\d+/\S+)`)
	yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// ExtractRuleBased derives bibliographic fields with regular expressions
// and positional heuristics over the first part of the text.
func ExtractRuleBased(text string) entity.Fields {
	var f entity.Fields

	f.Language = entity.StrPtr(detectLanguage(text))
	f.Title = guessTitle(text)
	f.DOI = findDOI(text)
	f.PublicationYear = findYear(text)
	f.Abstract = findAbstract(text)
	f.Keywords = findKeywords(text)
	return f
}

// detectLanguage classifies by script ratio over the first 8KB of text.
func detectLanguage(text string) string {
	var hangul, latin, total int
	for i, r := range text {
		if i > 8000 {
			break
		}
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		switch {
		case unicode.Is(unicode.Hangul, r):
			hangul++
		case r < 128:
			latin++
		}
	}
	if total == 0 {
		return "unknown"
	}
	hr := float64(hangul) / float64(total)
	lr := float64(latin) / float64(total)
	switch {
	case hr > 0.3 && lr > 0.2:
		return "mixed"
	case hr > 0.3:
		return "ko"
	case lr > 0.5:
		return "en"
	default:
		return "unknown"
	}
}

// guessTitle takes the first early line that looks like a heading:
// between 10 and 200 runes, not boilerplate.
func guessTitle(text string) *string {
	lines := strings.Split(text, "\n")
	limit := 5
	if len(lines) < limit {
		limit = len(lines)
	}
	for _, line := range lines[:limit] {
		line = strings.TrimSpace(line)
		n := utf8.RuneCountInString(line)
		if n <= 10 || n >= 200 {
			continue
		}
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "abstract") || strings.HasPrefix(lower, "doi") {
			continue
		}
		return entity.StrPtr(line)
	}
	return nil
}

func findDOI(text string) *string {
	m := doiPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return entity.StrPtr(strings.TrimRight(m[1], ".,;)"))
}

// findYear picks the most recent plausible year mentioned in the text,
// capped at the current year.
func findYear(text string) *int {
	now := time.Now().Year()
	best := 0
	for _, m := range yearPattern.FindAllString(text, -1) {
		y, err := strconv.Atoi(m)
		if err != nil || y > now {
			continue
		}
		if y > best {
			best = y
		}
	}
	if best == 0 {
		return nil
	}
	return entity.IntPtr(best)
}

// findAbstract grabs the paragraph following an "Abstract" heading,
// trimmed to a 50..500 word window.
func findAbstract(text string) *string {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, "abstract")
	if idx == -1 {
		return nil
	}
	rest := text[idx+len("abstract"):]
	rest = strings.TrimLeft(rest, ":— \t\r\n")

	// stop at the next section heading or after 500 words
	if cut := strings.Index(strings.ToLower(rest), "\nkeywords"); cut != -1 {
		rest = rest[:cut]
	}
	if cut := strings.Index(strings.ToLower(rest), "\n1. introduction"); cut != -1 {
		rest = rest[:cut]
	}

	words := strings.Fields(rest)
	if len(words) < 50 {
		return nil
	}
	if len(words) > 500 {
		words = words[:500]
	}
	return entity.StrPtr(strings.Join(words, " "))
}

// findKeywords parses a "Keywords:" line into at most 10 entries.
func findKeywords(text string) []string {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, "keywords")
	if idx == -1 {
		return nil
	}
	rest := text[idx+len("keywords"):]
	rest = strings.TrimLeft(rest, ": \t")
	if end := strings.IndexByte(rest, '\n'); end != -1 {
		rest = rest[:end]
	}

	split := func(r rune) bool { return r == ',' || r == ';' || r == '·' }
	var out []string
	for _, kw := range strings.FieldsFunc(rest, split) {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		out = append(out, kw)
		if len(out) == 10 {
			break
		}
	}
	return out
}
