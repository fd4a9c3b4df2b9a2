package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/papersources"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key, the limit increases to 10 requests/second.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 100

	// IDPrefix prefixes PMIDs to form paper IDs.
	IDPrefix = "pmid:"

	sourceName = "PubMed"
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits.
	APIKey string

	// Email is sent as the contact address NCBI asks tools to provide.
	Email string

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	// RateLimit defaults to DefaultRateLimit.
	RateLimit float64

	// BurstSize defaults to DefaultBurstSize.
	BurstSize int

	// MaxResults caps the per-request limit. Defaults to DefaultMaxResults.
	MaxResults int

	// MaxAttempts is the total number of attempts on a 429 response.
	MaxAttempts int

	// Enabled indicates whether this source is enabled.
	Enabled bool

	// OnRateLimited is called for every 429 response.
	OnRateLimited func()
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements papersources.PaperSource for PubMed.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var (
	_ papersources.PaperSource  = (*Client)(nil)
	_ papersources.PaperFetcher = (*Client)(nil)
)

// New creates a new PubMed client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpCfg := papersources.HTTPClientConfig{
		Source:        string(domain.SourceTypePubMed),
		Timeout:       cfg.Timeout,
		RateLimit:     cfg.RateLimit,
		BurstSize:     cfg.BurstSize,
		MaxAttempts:   cfg.MaxAttempts,
		OnRateLimited: cfg.OnRateLimited,
	}

	return &Client{
		config:     cfg,
		httpClient: papersources.NewHTTPClient(httpCfg),
	}
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries PubMed for papers matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) ([]*domain.UnifiedPaper, error) {
	pmids, err := c.esearch(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("esearch failed: %w", err)
	}
	if len(pmids) == 0 {
		return []*domain.UnifiedPaper{}, nil
	}

	set, err := c.efetch(ctx, pmids)
	if err != nil {
		return nil, fmt.Errorf("efetch failed: %w", err)
	}

	papers := make([]*domain.UnifiedPaper, 0, len(set.Articles))
	for _, article := range set.Articles {
		if paper := articleToPaper(article); paper != nil {
			papers = append(papers, paper)
		}
	}
	return papers, nil
}

// GetByID retrieves a paper by PMID, with or without the "pmid:" prefix.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.UnifiedPaper, error) {
	pmid := strings.TrimPrefix(strings.ToLower(id), IDPrefix)
	if _, err := strconv.Atoi(pmid); err != nil {
		return nil, domain.NewNotFoundError("paper", id)
	}

	set, err := c.efetch(ctx, []string{pmid})
	if err != nil {
		return nil, fmt.Errorf("efetch failed: %w", err)
	}
	for _, article := range set.Articles {
		if paper := articleToPaper(article); paper != nil {
			return paper, nil
		}
	}
	return nil, domain.NewNotFoundError("paper", id)
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypePubMed
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// esearch resolves a query to PMIDs ordered by relevance.
func (c *Client) esearch(ctx context.Context, params papersources.SearchParams) ([]string, error) {
	u, err := url.Parse(c.config.BaseURL + "/esearch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("term", params.Query)
	q.Set("retmode", "json")
	q.Set("sort", "relevance")

	limit := params.Limit
	if limit <= 0 || limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}
	q.Set("retmax", strconv.Itoa(limit))

	if params.YearFrom != nil || params.YearTo != nil {
		q.Set("datetype", "pdat")
		minYear, maxYear := "1800", "3000"
		if params.YearFrom != nil {
			minYear = strconv.Itoa(*params.YearFrom)
		}
		if params.YearTo != nil {
			maxYear = strconv.Itoa(*params.YearTo)
		}
		q.Set("mindate", minYear)
		q.Set("maxdate", maxYear)
	}
	c.addCommonParams(q)
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var resp ESearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse esearch response: %w: %w", domain.ErrMalformedOutput, err)
	}
	return resp.Result.IDList, nil
}

// efetch retrieves full article metadata for the given PMIDs.
func (c *Client) efetch(ctx context.Context, pmids []string) (*PubmedArticleSet, error) {
	u, err := url.Parse(c.config.BaseURL + "/efetch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")
	c.addCommonParams(q)
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var result PubmedArticleSet
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse efetch response: %w: %w", domain.ErrMalformedOutput, err)
	}
	return &result, nil
}

func (c *Client) addCommonParams(q url.Values) {
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	if c.config.Email != "" {
		q.Set("email", c.config.Email)
	}
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := papersources.CheckResponse(sourceName, resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// articleToPaper converts a PubmedArticle to a domain paper. Articles
// without a PMID or title are rejected. PubMed carries no citation counts,
// so CitationCount is always 0.
func articleToPaper(article PubmedArticle) *domain.UnifiedPaper {
	citation := article.MedlineCitation
	pmid := strings.TrimSpace(citation.PMID)
	title := cleanText(citation.Article.ArticleTitle.Inner)
	if pmid == "" || title == "" {
		return nil
	}

	journal := citation.Article.Journal.Title
	if journal == "" {
		journal = citation.Article.Journal.ISOAbbreviation
	}

	return &domain.UnifiedPaper{
		ID:           IDPrefix + pmid,
		Title:        title,
		Authors:      extractAuthors(citation.Article.AuthorList),
		Journal:      journal,
		Year:         extractYear(citation.Article),
		DOI:          extractDOI(citation.Article, article.PubmedData),
		PMID:         pmid,
		IsOpenAccess: hasPMCID(article.PubmedData),
		Abstract:     extractAbstract(citation.Article.Abstract),
		Source:       domain.SourceTypePubMed,
	}
}

// extractDOI checks ELocationID first, then ArticleIdList.
func extractDOI(article Article, pubmedData PubmedData) string {
	for _, eloc := range article.ELocationID {
		if eloc.EIdType == "doi" && (eloc.Valid == "" || eloc.Valid == "Y") {
			return strings.TrimSpace(eloc.Value)
		}
	}
	for _, aid := range pubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "doi" {
			return strings.TrimSpace(aid.Value)
		}
	}
	return ""
}

// hasPMCID reports whether the article has a free PubMed Central copy.
func hasPMCID(pubmedData PubmedData) bool {
	for _, aid := range pubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "pmc" && aid.Value != "" {
			return true
		}
	}
	return false
}

// extractYear uses the journal issue date, then a MedlineDate such as
// "2020 Jan-Feb", then the electronic publication date.
func extractYear(article Article) *int {
	pubDate := article.Journal.JournalIssue.PubDate
	if y, err := strconv.Atoi(strings.TrimSpace(pubDate.Year)); err == nil {
		return &y
	}
	if y := yearFromMedlineDate(pubDate.MedlineDate); y > 0 {
		return &y
	}
	for _, ad := range article.ArticleDate {
		if y, err := strconv.Atoi(strings.TrimSpace(ad.Year)); err == nil {
			return &y
		}
	}
	return nil
}

func yearFromMedlineDate(medlineDate string) int {
	parts := strings.Fields(medlineDate)
	if len(parts) > 0 {
		if year, err := strconv.Atoi(strings.Split(parts[0], "-")[0]); err == nil {
			return year
		}
	}
	return 0
}

// extractAbstract joins abstract sections, prefixing labeled ones.
func extractAbstract(abstract *Abstract) string {
	if abstract == nil {
		return ""
	}

	parts := make([]string, 0, len(abstract.AbstractTexts))
	for _, at := range abstract.AbstractTexts {
		text := cleanText(at.Inner)
		if text == "" {
			continue
		}
		if at.Label != "" {
			parts = append(parts, at.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// extractAuthors builds "ForeName LastName" names, skipping invalid entries.
func extractAuthors(authorList *AuthorList) []string {
	if authorList == nil {
		return []string{}
	}

	authors := make([]string, 0, len(authorList.Authors))
	for _, a := range authorList.Authors {
		if a.ValidYN == "N" {
			continue
		}
		name := a.CollectiveName
		if name == "" && a.LastName != "" {
			name = strings.TrimSpace(a.ForeName + " " + a.LastName)
		}
		if name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

var (
	markup     = regexp.MustCompile(`<[^>]+>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// cleanText strips inline markup and entities and collapses whitespace.
func cleanText(s string) string {
	s = markup.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
