package metadata

import (
	"strings"
	"time"
	"unicode/utf8"

	"paperalchemist/internal/entity"
)

// Field bounds applied after merge. Oversized values are clamped, never
// rejected; a paper with 30 listed authors still gets stored.
const (
	maxTitleRunes = 300
	maxAuthors    = 20
	maxKeywords   = 15
	minYear       = 1900
)

// Merge overlays LLM answers onto the rule-based baseline. A nil LLM field
// means "no answer", so the baseline value survives. Non-nil always wins,
// even when the baseline also found something.
func Merge(base, llm entity.Fields) entity.Fields {
	out := base
	if llm.Title != nil {
		out.Title = llm.Title
	}
	if llm.Authors != nil {
		out.Authors = llm.Authors
	}
	if llm.Abstract != nil {
		out.Abstract = llm.Abstract
	}
	if llm.Keywords != nil {
		out.Keywords = llm.Keywords
	}
	if llm.PublicationYear != nil {
		out.PublicationYear = llm.PublicationYear
	}
	if llm.Journal != nil {
		out.Journal = llm.Journal
	}
	if llm.DOI != nil {
		out.DOI = llm.DOI
	}
	if llm.Institution != nil {
		out.Institution = llm.Institution
	}
	if llm.Language != nil {
		out.Language = llm.Language
	}
	if llm.PaperType != nil {
		out.PaperType = llm.PaperType
	}
	if llm.Field != nil {
		out.Field = llm.Field
	}
	return out
}

// Validate clamps merged fields to storage bounds and drops values that
// cannot be right (future years, blank strings).
func Validate(f entity.Fields) entity.Fields {
	f.Title = clampString(f.Title, maxTitleRunes)
	f.Abstract = trimOrNil(f.Abstract)
	f.Journal = trimOrNil(f.Journal)
	f.DOI = trimOrNil(f.DOI)
	f.Language = trimOrNil(f.Language)
	f.PaperType = trimOrNil(f.PaperType)
	f.Field = trimOrNil(f.Field)

	f.Authors = clampList(f.Authors, maxAuthors)
	f.Keywords = clampList(f.Keywords, maxKeywords)
	f.Institution = clampList(f.Institution, maxAuthors)

	if f.PublicationYear != nil {
		y := *f.PublicationYear
		if y < minYear || y > time.Now().Year()+1 {
			f.PublicationYear = nil
		}
	}
	return f
}

func trimOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func clampString(s *string, maxRunes int) *string {
	s = trimOrNil(s)
	if s == nil {
		return nil
	}
	if utf8.RuneCountInString(*s) <= maxRunes {
		return s
	}
	runes := []rune(*s)
	t := string(runes[:maxRunes])
	return &t
}

func clampList(list []string, max int) []string {
	var out []string
	for _, item := range list {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == max {
			break
		}
	}
	return out
}
