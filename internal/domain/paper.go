package domain

import (
	"regexp"
	"strings"
)

// SourceType identifies the provider that returned a paper record.
type SourceType string

const (
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
	SourceTypePubMed          SourceType = "pubmed"
	SourceTypeOpenAlex        SourceType = "openalex"
)

// PrimarySource is the provider whose identity wins when records are merged.
const PrimarySource = SourceTypeSemanticScholar

// UnifiedPaper is the provider-neutral representation of a search hit.
// Papers live for a single pipeline run and are never persisted.
type UnifiedPaper struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Authors       []string   `json:"authors"`
	Journal       string     `json:"journal,omitempty"`
	Year          *int       `json:"year,omitempty"`
	DOI           string     `json:"doi,omitempty"`
	PMID          string     `json:"pmid,omitempty"`
	CitationCount int        `json:"citation_count"`
	IsOpenAccess  bool       `json:"is_open_access"`
	PDFURL        string     `json:"pdf_url,omitempty"`
	Abstract      string     `json:"abstract,omitempty"`
	Source        SourceType `json:"source"`
}

var (
	titlePunctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
)

// NormalizeTitle lowercases a title, strips punctuation and collapses whitespace.
// "A Study, of X!!" and "a study of x" normalize to the same string.
func NormalizeTitle(title string) string {
	t := strings.ToLower(title)
	t = titlePunctuation.ReplaceAllString(t, "")
	t = whitespaceRun.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// NormalizeDOI returns the case-insensitive lookup form of a DOI.
func NormalizeDOI(doi string) string {
	return strings.ToLower(strings.TrimSpace(doi))
}

// IdentityKey returns the key two records must share to be considered the
// same paper: the DOI when present, otherwise the normalized title.
// Returns an empty string when the paper has neither.
func (p *UnifiedPaper) IdentityKey() string {
	if doi := NormalizeDOI(p.DOI); doi != "" {
		return "doi:" + doi
	}
	if title := NormalizeTitle(p.Title); title != "" {
		return "title:" + title
	}
	return ""
}

// HasAbstract reports whether the paper carries usable abstract text.
func (p *UnifiedPaper) HasAbstract() bool {
	return strings.TrimSpace(p.Abstract) != ""
}

// Clone returns a deep copy of the paper.
func (p *UnifiedPaper) Clone() *UnifiedPaper {
	c := *p
	if p.Authors != nil {
		c.Authors = append([]string(nil), p.Authors...)
	}
	if p.Year != nil {
		y := *p.Year
		c.Year = &y
	}
	return &c
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
