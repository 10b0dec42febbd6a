package metadata

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateHeadKeepsRunesIntact(t *testing.T) {
	text := strings.Repeat("한", 100) // 3 bytes per rune
	for _, max := range []int{1, 2, 3, 4, 100, 299, 300} {
		got := truncateHead(text, max)
		assert.True(t, utf8.ValidString(got), "max %d produced a split rune", max)
		assert.LessOrEqual(t, len(got), max)
	}
}

func TestTruncateHeadShortTextUntouched(t *testing.T) {
	assert.Equal(t, "abc", truncateHead("abc", 10))
	assert.Equal(t, "abc", truncateHead("abc", 3))
}

func TestParseFieldsCleanResponse(t *testing.T) {
	fields, err := parseFields(`{
		"title": "A Study of Things",
		"authors": ["First Author", "Second Author"],
		"publication_year": 2022,
		"doi": null,
		"language": "english"
	}`)
	require.NoError(t, err)

	assert.Equal(t, "A Study of Things", *fields.Title)
	assert.Len(t, fields.Authors, 2)
	assert.Equal(t, 2022, *fields.PublicationYear)
	assert.Nil(t, fields.DOI)
}

func TestParseFieldsWrappedInProse(t *testing.T) {
	fields, err := parseFields(`Here is the metadata you asked for:
{"title": "Wrapped Title", "journal": "Journal of Tests"}
Hope that helps!`)
	require.NoError(t, err)
	assert.Equal(t, "Wrapped Title", *fields.Title)
	assert.Equal(t, "Journal of Tests", *fields.Journal)
}

func TestParseFieldsRejectsNonJSON(t *testing.T) {
	_, err := parseFields("I could not find any metadata in this text.")
	assert.Error(t, err)
}

func TestParseFieldsRejectsWrongTypes(t *testing.T) {
	_, err := parseFields(`{"publication_year": "twenty twenty two"}`)
	assert.Error(t, err)
}

func TestParseFieldsAllNull(t *testing.T) {
	fields, err := parseFields(`{"title": null, "authors": null, "publication_year": null}`)
	require.NoError(t, err)
	assert.Nil(t, fields.Title)
	assert.Nil(t, fields.Authors)
	assert.Nil(t, fields.PublicationYear)
}
