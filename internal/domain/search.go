package domain

import (
	"github.com/go-playground/validator/v10"
)

// Supported response languages.
const (
	LanguageJapanese          = "ja"
	LanguageEnglish           = "en"
	LanguageChineseSimplified = "zh-Hans"
	LanguageKorean            = "ko"
	LanguageSpanish           = "es"
	LanguagePortugueseBrazil  = "pt-BR"
	LanguageThai              = "th"
	LanguageVietnamese        = "vi"
	DefaultLanguage           = LanguageJapanese
)

// SupportedLanguages lists every language summaries can be generated in.
var SupportedLanguages = []string{
	LanguageJapanese,
	LanguageEnglish,
	LanguageChineseSimplified,
	LanguageKorean,
	LanguageSpanish,
	LanguagePortugueseBrazil,
	LanguageThai,
	LanguageVietnamese,
}

// IsSupportedLanguage reports whether lang is one of SupportedLanguages.
func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// Difficulty selects the reading level of a graded abstract translation.
type Difficulty string

const (
	DifficultyExpert    Difficulty = "expert"
	DifficultyLayperson Difficulty = "layperson"
	DifficultyChildren  Difficulty = "children"
)

// Difficulties lists every graded translation level.
var Difficulties = []Difficulty{DifficultyExpert, DifficultyLayperson, DifficultyChildren}

// ParseDifficulty maps free text onto a Difficulty, defaulting to layperson.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(s) {
	case DifficultyExpert, DifficultyLayperson, DifficultyChildren:
		return Difficulty(s)
	default:
		return DifficultyLayperson
	}
}

// Pagination defaults.
const (
	DefaultPerPage = 50
	MaxPerPage     = 100
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SearchFilters narrows provider results by publication year.
type SearchFilters struct {
	YearFrom *int `json:"year_from,omitempty" validate:"omitempty,gte=1800,lte=2200"`
	YearTo   *int `json:"year_to,omitempty" validate:"omitempty,gte=1800,lte=2200"`
}

// SearchRequest is a single search submitted by a client.
type SearchRequest struct {
	Query    string        `json:"query" validate:"required,max=2000"`
	Language string        `json:"language" validate:"required"`
	Page     int           `json:"page" validate:"gte=1"`
	PerPage  int           `json:"per_page" validate:"gte=1,lte=100"`
	Filters  SearchFilters `json:"filters"`
}

// ApplyDefaults fills optional fields left at their zero value.
func (r *SearchRequest) ApplyDefaults() {
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	if r.Page == 0 {
		r.Page = 1
	}
	if r.PerPage == 0 {
		r.PerPage = DefaultPerPage
	}
}

// Validate checks field constraints and returns a *ValidationError on failure.
func (r *SearchRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return NewValidationError(fe.Field(), "failed '"+fe.Tag()+"' constraint")
		}
		return NewValidationError("request", err.Error())
	}
	if !IsSupportedLanguage(r.Language) {
		return NewValidationError("Language", "unsupported language "+r.Language)
	}
	if r.Filters.YearFrom != nil && r.Filters.YearTo != nil && *r.Filters.YearFrom > *r.Filters.YearTo {
		return NewValidationError("Filters", "year_from must not be after year_to")
	}
	return nil
}

// QueryExpansion is the structured interpretation of a natural-language query.
type QueryExpansion struct {
	OriginalQuery     string              `json:"original_query"`
	InterpretedIntent string              `json:"interpreted_intent"`
	AcademicQueries   []string            `json:"academic_queries"`
	MeshTerms         []string            `json:"mesh_terms"`
	KeyConcepts       map[string][]string `json:"key_concepts"`
}

// Clone returns a deep copy of the expansion.
func (q QueryExpansion) Clone() QueryExpansion {
	out := q
	out.AcademicQueries = append([]string(nil), q.AcademicQueries...)
	out.MeshTerms = append([]string(nil), q.MeshTerms...)
	if q.KeyConcepts != nil {
		out.KeyConcepts = make(map[string][]string, len(q.KeyConcepts))
		for k, v := range q.KeyConcepts {
			out.KeyConcepts[k] = append([]string(nil), v...)
		}
	}
	return out
}

// PaperResult is one paper as presented in a search response.
type PaperResult struct {
	ID                string            `json:"id"`
	Title             string            `json:"title"`
	TitleTranslated   string            `json:"title_translated,omitempty"`
	Authors           []string          `json:"authors"`
	Journal           string            `json:"journal,omitempty"`
	Year              *int              `json:"year,omitempty"`
	DOI               string            `json:"doi,omitempty"`
	CitationCount     int               `json:"citation_count"`
	StudyType         StudyType         `json:"study_type,omitempty"`
	EvidenceLevel     EvidenceLevel     `json:"evidence_level,omitempty"`
	IsOpenAccess      bool              `json:"is_open_access"`
	PDFURL            string            `json:"pdf_url,omitempty"`
	AbstractOriginal  string            `json:"abstract_original,omitempty"`
	SummaryByLanguage map[string]string `json:"summary_by_language"`
	RelevanceScore    float64           `json:"relevance_score"`
	RelevanceReason   string            `json:"relevance_reason,omitempty"`
}

// SearchResponse is the composed result of one search request.
type SearchResponse struct {
	AISummaryText    string        `json:"ai_summary_text"`
	Language         string        `json:"language"`
	GeneratedQueries []string      `json:"generated_queries"`
	Papers           []PaperResult `json:"papers"`
	TotalResults     int           `json:"total_results"`
	Page             int           `json:"page"`
	PerPage          int           `json:"per_page"`
	Cached           bool          `json:"cached"`
}

// PaperSummary is a cached or freshly generated summary of one paper.
type PaperSummary struct {
	PaperID  string `json:"paper_id"`
	Language string `json:"language"`
	Summary  string `json:"summary"`
	Cached   bool   `json:"cached"`
}

// AbstractTranslation is an abstract rewritten for one reading level.
type AbstractTranslation struct {
	Difficulty Difficulty `json:"difficulty"`
	Text       string     `json:"text"`
}

// PaperDetail is a single paper with its graded abstract translations.
type PaperDetail struct {
	Paper        *UnifiedPaper         `json:"paper"`
	Language     string                `json:"language"`
	Translations []AbstractTranslation `json:"translations"`
}
