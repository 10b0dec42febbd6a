package metadata

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperalchemist/internal/entity"
)

func TestMergeLLMWinsWhenPresent(t *testing.T) {
	base := entity.Fields{
		Title:    entity.StrPtr("rule title"),
		Language: entity.StrPtr("english"),
		Authors:  []string{"Rule Author"},
	}
	llm := entity.Fields{
		Title:   entity.StrPtr("LLM Title"),
		Authors: []string{"A. Author", "B. Author"},
	}

	out := Merge(base, llm)
	assert.Equal(t, "LLM Title", *out.Title)
	assert.Equal(t, []string{"A. Author", "B. Author"}, out.Authors)
	// nil LLM field keeps the baseline
	assert.Equal(t, "english", *out.Language)
}

func TestMergeNilLLMKeepsEverything(t *testing.T) {
	base := entity.Fields{
		Title:           entity.StrPtr("rule title"),
		DOI:             entity.StrPtr("10.1/x"),
		PublicationYear: entity.IntPtr(2021),
	}
	out := Merge(base, entity.Fields{})
	assert.Equal(t, base, out)
}

func TestMergeEmptySliceStillWins(t *testing.T) {
	base := entity.Fields{Keywords: []string{"kw1"}}
	llm := entity.Fields{Keywords: []string{}}
	// a non-nil empty answer is an answer
	out := Merge(base, llm)
	assert.Empty(t, out.Keywords)
}

func TestValidateClampsTitle(t *testing.T) {
	long := strings.Repeat("x", 400)
	out := Validate(entity.Fields{Title: &long})
	require.NotNil(t, out.Title)
	assert.Equal(t, 300, len([]rune(*out.Title)))
}

func TestValidateClampsLists(t *testing.T) {
	authors := make([]string, 30)
	keywords := make([]string, 30)
	for i := range authors {
		authors[i] = "author"
		keywords[i] = "kw"
	}
	out := Validate(entity.Fields{Authors: authors, Keywords: keywords})
	assert.Len(t, out.Authors, 20)
	assert.Len(t, out.Keywords, 15)
}

func TestValidateDropsImplausibleYears(t *testing.T) {
	out := Validate(entity.Fields{PublicationYear: entity.IntPtr(1850)})
	assert.Nil(t, out.PublicationYear)

	out = Validate(entity.Fields{PublicationYear: entity.IntPtr(time.Now().Year() + 5)})
	assert.Nil(t, out.PublicationYear)

	out = Validate(entity.Fields{PublicationYear: entity.IntPtr(2020)})
	require.NotNil(t, out.PublicationYear)
	assert.Equal(t, 2020, *out.PublicationYear)
}

func TestValidateDropsBlankStrings(t *testing.T) {
	out := Validate(entity.Fields{
		Journal: entity.StrPtr("   "),
		DOI:     entity.StrPtr("\t"),
		Authors: []string{" ", "Real Author", ""},
	})
	assert.Nil(t, out.Journal)
	assert.Nil(t, out.DOI)
	assert.Equal(t, []string{"Real Author"}, out.Authors)
}
