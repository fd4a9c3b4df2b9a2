package openalex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// OpenAlex polite pool (with email) allows higher rates.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	// OpenAlex caps per_page at 200.
	DefaultMaxResults = 200

	// IDPrefix prefixes short OpenAlex work IDs to form paper IDs.
	IDPrefix = "openalex:"

	doiPrefix        = "https://doi.org/"
	openAlexIDPrefix = "https://openalex.org/"
	pubmedURLPrefix  = "https://pubmed.ncbi.nlm.nih.gov/"

	sourceName = "OpenAlex"
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Email is the contact email for the polite pool.
	// See: https://docs.openalex.org/how-to-use-the-api/rate-limits-and-authentication
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

	// Enabled indicates whether this source is enabled for searches.
	Enabled bool

	// OnRateLimited is called for every 429 response.
	OnRateLimited func()
}

// applyDefaults sets default values for unset configuration fields.
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
	if c.MaxResults == 0 || c.MaxResults > DefaultMaxResults {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the papersources.PaperSource interface for OpenAlex.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var (
	_ papersources.PaperSource  = (*Client)(nil)
	_ papersources.PaperFetcher = (*Client)(nil)
)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	userAgent := "Helixir-PaperSearch/1.0"
	if cfg.Email != "" {
		userAgent += " (mailto:" + cfg.Email + ")"
	}

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:        string(domain.SourceTypeOpenAlex),
		Timeout:       cfg.Timeout,
		RateLimit:     cfg.RateLimit,
		BurstSize:     cfg.BurstSize,
		MaxAttempts:   cfg.MaxAttempts,
		UserAgent:     userAgent,
		OnRateLimited: cfg.OnRateLimited,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries OpenAlex for papers matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) ([]*domain.UnifiedPaper, error) {
	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	var searchResp SearchResponse
	if err := c.getJSON(ctx, searchURL, &searchResp); err != nil {
		return nil, err
	}

	papers := make([]*domain.UnifiedPaper, 0, len(searchResp.Results))
	for _, work := range searchResp.Results {
		if paper := workToPaper(work); paper != nil {
			papers = append(papers, paper)
		}
	}
	return papers, nil
}

// GetByID retrieves a paper by its OpenAlex ID (with or without the
// "openalex:" prefix), DOI, or "pmid:" ID.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.UnifiedPaper, error) {
	fetchURL, err := c.buildGetByIDURL(id)
	if err != nil {
		return nil, fmt.Errorf("building fetch URL: %w", err)
	}

	var work Work
	if err := c.getJSON(ctx, fetchURL, &work); err != nil {
		var apiErr *domain.ExternalAPIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, domain.NewNotFoundError("paper", id)
		}
		return nil, err
	}

	paper := workToPaper(&work)
	if paper == nil {
		return nil, domain.NewNotFoundError("paper", id)
	}
	return paper, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeOpenAlex
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := papersources.CheckResponse(sourceName, resp); err != nil {
		return err
	}

	// Limit body to 10MB to prevent resource exhaustion.
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w: %w", domain.ErrMalformedOutput, err)
	}
	return nil
}

// buildSearchURL constructs the search API URL with query parameters.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimSuffix(baseURL.Path, "/") + "/works"

	query := url.Values{}
	query.Set("search", params.Query)

	if filter := yearFilter(params.YearFrom, params.YearTo); filter != "" {
		query.Set("filter", filter)
	}

	limit := params.Limit
	if limit <= 0 || limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}
	query.Set("per_page", strconv.Itoa(limit))

	if c.config.Email != "" {
		query.Set("mailto", c.config.Email)
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// yearFilter renders the publication_year filter: "2018-2022", ">2017" or "<2023".
func yearFilter(from, to *int) string {
	switch {
	case from != nil && to != nil:
		return fmt.Sprintf("publication_year:%d-%d", *from, *to)
	case from != nil:
		return fmt.Sprintf("publication_year:>%d", *from-1)
	case to != nil:
		return fmt.Sprintf("publication_year:<%d", *to+1)
	default:
		return ""
	}
}

// buildGetByIDURL constructs the URL for fetching a work by ID.
func (c *Client) buildGetByIDURL(id string) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	var workID string
	lower := strings.ToLower(id)
	switch {
	case strings.HasPrefix(lower, IDPrefix):
		workID = id[len(IDPrefix):]
	case strings.HasPrefix(id, openAlexIDPrefix):
		workID = strings.TrimPrefix(id, openAlexIDPrefix)
	case strings.HasPrefix(lower, "pmid:"):
		workID = "pmid:" + id[len("pmid:"):]
	case strings.HasPrefix(lower, "doi:"):
		workID = doiPrefix + id[len("doi:"):]
	case strings.HasPrefix(id, "10."):
		workID = doiPrefix + id
	default:
		workID = id
	}

	// OpenAlex expects DOIs as-is in the path and decodes them on its side.
	baseURL.Path = strings.TrimSuffix(baseURL.Path, "/") + "/works/" + workID

	if c.config.Email != "" {
		query := url.Values{}
		query.Set("mailto", c.config.Email)
		baseURL.RawQuery = query.Encode()
	}

	return baseURL.String(), nil
}

// workToPaper converts an OpenAlex Work to a domain paper. Works without
// an ID or title are rejected.
func workToPaper(work *Work) *domain.UnifiedPaper {
	if work == nil {
		return nil
	}

	shortID := strings.TrimSpace(strings.TrimPrefix(work.ID, openAlexIDPrefix))
	title := strings.TrimSpace(deref(work.DisplayName))
	if title == "" {
		title = strings.TrimSpace(deref(work.Title))
	}
	if shortID == "" || title == "" {
		return nil
	}

	doi := normalizeDOI(deref(work.DOI))
	if doi == "" {
		doi = normalizeDOI(work.IDs.DOI)
	}

	authors := make([]string, 0, len(work.Authorships))
	for _, a := range work.Authorships {
		if name := strings.TrimSpace(a.Author.DisplayName); name != "" {
			authors = append(authors, name)
		}
	}

	var journal, pdfURL string
	if loc := work.PrimaryLocation; loc != nil {
		if loc.Source != nil {
			journal = loc.Source.DisplayName
		}
		pdfURL = deref(loc.PDFURL)
	}

	var isOpenAccess bool
	if work.OpenAccess != nil {
		isOpenAccess = work.OpenAccess.IsOA
		if pdfURL == "" {
			pdfURL = work.OpenAccess.OAURL
		}
	}

	citations := 0
	if work.CitedByCount != nil && *work.CitedByCount > 0 {
		citations = *work.CitedByCount
	}

	return &domain.UnifiedPaper{
		ID:            IDPrefix + shortID,
		Title:         title,
		Authors:       authors,
		Journal:       journal,
		Year:          work.PublicationYear,
		DOI:           doi,
		PMID:          strings.TrimSpace(strings.TrimPrefix(work.IDs.PMID, pubmedURLPrefix)),
		CitationCount: citations,
		IsOpenAccess:  isOpenAccess,
		PDFURL:        pdfURL,
		Abstract:      reconstructAbstract(work.AbstractInvertedIndex),
		Source:        domain.SourceTypeOpenAlex,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// normalizeDOI strips the URL prefix OpenAlex puts on DOIs.
func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, doiPrefix)
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	return strings.TrimSpace(doi)
}

// reconstructAbstract rebuilds the abstract text from OpenAlex's inverted
// index format, which maps words to their positions.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	const maxAbstractWords = 100_000
	totalPairs := 0
	for _, positions := range invertedIndex {
		totalPairs += len(positions)
	}
	// Guard against malicious payloads with excessive position entries.
	if totalPairs > maxAbstractWords {
		return ""
	}

	pairs := make([]posWord, 0, totalPairs)
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	var builder strings.Builder
	builder.Grow(totalPairs * 7)
	for i, pair := range pairs {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(pair.word)
	}
	return builder.String()
}
