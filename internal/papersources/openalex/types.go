// Package openalex provides a client for the OpenAlex API.
//
// OpenAlex is a free, open catalog of scholarly works. This package
// implements the PaperSource interface for searching and retrieving
// papers from OpenAlex.
//
// API Documentation: https://docs.openalex.org/
package openalex

// SearchResponse represents the top-level response from the OpenAlex works search endpoint.
type SearchResponse struct {
	Meta    Meta    `json:"meta"`
	Results []*Work `json:"results"`
}

// Meta contains metadata about the search results.
type Meta struct {
	Count   int `json:"count"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Work represents an academic work (paper) in OpenAlex. Optional scalars
// are pointers so missing fields can be told apart from zero values.
type Work struct {
	ID              string       `json:"id"`
	DOI             *string      `json:"doi"`
	Title           *string      `json:"title"`
	DisplayName     *string      `json:"display_name"`
	PublicationYear *int         `json:"publication_year"`
	CitedByCount    *int         `json:"cited_by_count"`
	OpenAccess      *OpenAccess  `json:"open_access"`
	Authorships     []Authorship `json:"authorships"`
	PrimaryLocation *Location    `json:"primary_location"`
	IDs             IDs          `json:"ids"`

	// AbstractInvertedIndex maps each word to its positions in the abstract.
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

// OpenAccess contains open access information for a work.
type OpenAccess struct {
	IsOA  bool   `json:"is_oa"`
	OAURL string `json:"oa_url"`
}

// Authorship represents an author's contribution to a work.
type Authorship struct {
	Author AuthorInfo `json:"author"`
}

// AuthorInfo contains basic author information.
type AuthorInfo struct {
	DisplayName string `json:"display_name"`
}

// Location represents where a work is available.
type Location struct {
	Source *Source `json:"source"`
	PDFURL *string `json:"pdf_url"`
}

// Source represents a publication venue.
type Source struct {
	DisplayName string `json:"display_name"`
}

// IDs contains external identifiers for a work.
type IDs struct {
	DOI  string `json:"doi"`
	PMID string `json:"pmid"`
}
