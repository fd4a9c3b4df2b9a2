// Package semanticscholar provides a client for the Semantic Scholar API.
//
// This package implements the papersources.PaperSource and
// papersources.PaperFetcher interfaces over the Semantic Scholar Graph API.
//
// API Documentation: https://api.semanticscholar.org/api-docs/
package semanticscholar

// SearchResponse represents the response from the paper search endpoint.
type SearchResponse struct {
	// Total is the total number of papers matching the query.
	Total int `json:"total"`

	// Data contains the papers returned by the search. Entries may be null.
	Data []*PaperResult `json:"data"`
}

// PaperResult represents a single paper in the API response. Optional
// fields decode to their zero values: a missing citationCount is 0, a
// missing year is nil and a missing isOpenAccess is false.
type PaperResult struct {
	PaperID       string         `json:"paperId"`
	Title         string         `json:"title"`
	Abstract      *string        `json:"abstract"`
	Year          *int           `json:"year"`
	Journal       *Journal       `json:"journal"`
	Authors       []Author       `json:"authors"`
	CitationCount *int           `json:"citationCount"`
	IsOpenAccess  bool           `json:"isOpenAccess"`
	OpenAccessPDF *OpenAccessPDF `json:"openAccessPdf"`
	ExternalIDs   *ExternalIDs   `json:"externalIds"`
}

// ExternalIDs contains external identifiers for a paper.
type ExternalIDs struct {
	DOI    string `json:"DOI,omitempty"`
	PubMed string `json:"PubMed,omitempty"`
}

// Journal contains journal-specific information.
type Journal struct {
	Name string `json:"name,omitempty"`
}

// Author represents a paper author.
type Author struct {
	Name string `json:"name"`
}

// OpenAccessPDF contains information about an open access PDF.
type OpenAccessPDF struct {
	URL string `json:"url,omitempty"`
}
