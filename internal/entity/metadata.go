package entity

// Fields is the fixed bibliographic schema extracted from paper text.
// Optional scalars are pointers so "absent" is distinguishable from zero;
// the LLM merge keeps the rule-based value wherever the LLM field is nil.
type Fields struct {
	Title           *string  `json:"title"`
	Authors         []string `json:"authors"`
	Abstract        *string  `json:"abstract"`
	Keywords        []string `json:"keywords"`
	PublicationYear *int     `json:"publication_year"`
	Journal         *string  `json:"journal"`
	DOI             *string  `json:"doi"`
	Institution     []string `json:"institution"`
	Language        *string  `json:"language"`
	PaperType       *string  `json:"paper_type"`
	Field           *string  `json:"field"`
}

// StrPtr is a small helper for building Fields literals.
func StrPtr(s string) *string { return &s }

// IntPtr is a small helper for building Fields literals.
func IntPtr(i int) *int { return &i }
