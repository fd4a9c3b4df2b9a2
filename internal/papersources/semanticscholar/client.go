package semanticscholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default requests per second. Unauthenticated
	// clients share a small pool, so this stays low.
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxResults is the maximum number of results per request.
	DefaultMaxResults = 100

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// paperFields is the list of fields to request from the API.
	paperFields = "title,abstract,authors,year,citationCount,journal,isOpenAccess,openAccessPdf,externalIds"

	sourceName = "Semantic Scholar"
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// APIKey is the optional API key for authenticated requests.
	APIKey string

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

// Client implements papersources.PaperSource for Semantic Scholar.
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
}

var (
	_ papersources.PaperSource  = (*Client)(nil)
	_ papersources.PaperFetcher = (*Client)(nil)
)

// NewClient creates a new Semantic Scholar client with the given configuration.
// If httpClient is nil, a new one will be created with the configuration settings.
func NewClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = DefaultBurstSize
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = DefaultMaxResults
	}

	if httpClient == nil {
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:        string(domain.SourceTypeSemanticScholar),
			Timeout:       cfg.Timeout,
			RateLimit:     cfg.RateLimit,
			BurstSize:     cfg.BurstSize,
			MaxAttempts:   cfg.MaxAttempts,
			APIKey:        cfg.APIKey,
			APIKeyHeader:  apiKeyHeader,
			OnRateLimited: cfg.OnRateLimited,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
	}
}

// Search queries Semantic Scholar for papers matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) ([]*domain.UnifiedPaper, error) {
	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	var searchResp SearchResponse
	if err := c.getJSON(ctx, searchURL, &searchResp); err != nil {
		return nil, err
	}

	papers := make([]*domain.UnifiedPaper, 0, len(searchResp.Data))
	for _, result := range searchResp.Data {
		if paper := convertToPaper(result); paper != nil {
			papers = append(papers, paper)
		}
	}
	return papers, nil
}

// GetByID retrieves a paper by its Semantic Scholar ID. PubMed identifiers
// in the "pmid:<n>" form used by the PubMed source are also accepted.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.UnifiedPaper, error) {
	lookup := id
	if rest, ok := strings.CutPrefix(strings.ToLower(id), "pmid:"); ok {
		lookup = "PMID:" + rest
	}

	paperURL := fmt.Sprintf("%s/paper/%s?fields=%s", c.config.BaseURL, url.PathEscape(lookup), paperFields)

	var result PaperResult
	if err := c.getJSON(ctx, paperURL, &result); err != nil {
		var apiErr *domain.ExternalAPIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, domain.NewNotFoundError("paper", id)
		}
		return nil, err
	}

	paper := convertToPaper(&result)
	if paper == nil {
		return nil, domain.NewNotFoundError("paper", id)
	}
	return paper, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

func (c *Client) getJSON(ctx context.Context, rawURL string, dst interface{}) error {
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
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(dst); err != nil {
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

	searchURL := baseURL.JoinPath("paper", "search")

	q := searchURL.Query()
	q.Set("query", params.Query)
	q.Set("fields", paperFields)

	limit := params.Limit
	if limit <= 0 || limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}
	q.Set("limit", strconv.Itoa(limit))

	// Year ranges are "from-to" with either side optional.
	if params.YearFrom != nil || params.YearTo != nil {
		var from, to string
		if params.YearFrom != nil {
			from = strconv.Itoa(*params.YearFrom)
		}
		if params.YearTo != nil {
			to = strconv.Itoa(*params.YearTo)
		}
		q.Set("year", from+"-"+to)
	}

	searchURL.RawQuery = q.Encode()
	return searchURL.String(), nil
}

// convertToPaper converts an API result to a domain paper. Results without
// a paper ID or title are rejected.
func convertToPaper(result *PaperResult) *domain.UnifiedPaper {
	if result == nil || result.PaperID == "" || strings.TrimSpace(result.Title) == "" {
		return nil
	}

	paper := &domain.UnifiedPaper{
		ID:           result.PaperID,
		Title:        result.Title,
		Authors:      convertAuthors(result.Authors),
		Year:         result.Year,
		IsOpenAccess: result.IsOpenAccess,
		Source:       domain.SourceTypeSemanticScholar,
	}
	if result.Abstract != nil {
		paper.Abstract = *result.Abstract
	}
	if result.CitationCount != nil && *result.CitationCount > 0 {
		paper.CitationCount = *result.CitationCount
	}
	if result.Journal != nil {
		paper.Journal = result.Journal.Name
	}
	if result.OpenAccessPDF != nil {
		paper.PDFURL = result.OpenAccessPDF.URL
	}
	if result.ExternalIDs != nil {
		paper.DOI = result.ExternalIDs.DOI
		paper.PMID = result.ExternalIDs.PubMed
	}
	return paper
}

// convertAuthors keeps named authors in order.
func convertAuthors(apiAuthors []Author) []string {
	authors := make([]string, 0, len(apiAuthors))
	for _, a := range apiAuthors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}
	return authors
}
