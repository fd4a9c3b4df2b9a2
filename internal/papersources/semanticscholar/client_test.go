package semanticscholar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/papersources"
)

const searchFixture = `{
  "total": 3,
  "data": [
    {
      "paperId": "abc123",
      "title": "CRISPR Gene Editing: A Review",
      "abstract": "This paper reviews CRISPR technology.",
      "year": 2023,
      "journal": {"name": "Nature Reviews Genetics"},
      "authors": [{"name": "Jane Doe"}, {"name": ""}, {"name": "John Smith"}],
      "citationCount": 50,
      "isOpenAccess": true,
      "openAccessPdf": {"url": "https://example.com/paper.pdf"},
      "externalIds": {"DOI": "10.1038/S41576", "PubMed": "12345678"}
    },
    {
      "paperId": "def456",
      "title": "Gene Therapy Applications",
      "abstract": null,
      "year": null,
      "journal": null,
      "authors": [],
      "citationCount": null
    },
    null,
    {"paperId": "", "title": "No identifier"},
    {"paperId": "ghi789", "title": "   "}
  ]
}`

// fastHTTPClient retries 429s without sleeping.
func fastHTTPClient() *papersources.HTTPClient {
	return papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:    string(domain.SourceTypeSemanticScholar),
		RateLimit: 1000,
		BurstSize: 100,
		Backoff:   func(int) time.Duration { return time.Millisecond },
	})
}

func TestNewClient(t *testing.T) {
	t.Run("creates client with default values", func(t *testing.T) {
		client := NewClient(Config{Enabled: true}, nil)

		require.NotNil(t, client)
		assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
		assert.Equal(t, DefaultTimeout, client.config.Timeout)
		assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
		assert.Equal(t, DefaultBurstSize, client.config.BurstSize)
		assert.Equal(t, DefaultMaxResults, client.config.MaxResults)
	})

	t.Run("implements PaperSource interface", func(t *testing.T) {
		client := NewClient(Config{Enabled: true}, nil)

		assert.Equal(t, domain.SourceTypeSemanticScholar, client.SourceType())
		assert.Equal(t, "Semantic Scholar", client.Name())
		assert.True(t, client.IsEnabled())
		assert.False(t, NewClient(Config{}, nil).IsEnabled())
	})
}

func TestClient_Search(t *testing.T) {
	t.Run("parses typed results and drops invalid records", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/paper/search", r.URL.Path)
			assert.Equal(t, "crispr", r.URL.Query().Get("query"))
			assert.Equal(t, "20", r.URL.Query().Get("limit"))
			assert.Equal(t, paperFields, r.URL.Query().Get("fields"))
			assert.Equal(t, "secret", r.Header.Get("x-api-key"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(searchFixture))
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL, APIKey: "secret", Enabled: true}, nil)
		papers, err := client.Search(context.Background(), papersources.SearchParams{Query: "crispr", Limit: 20})
		require.NoError(t, err)
		require.Len(t, papers, 2)

		first := papers[0]
		assert.Equal(t, "abc123", first.ID)
		assert.Equal(t, []string{"Jane Doe", "John Smith"}, first.Authors)
		assert.Equal(t, "Nature Reviews Genetics", first.Journal)
		require.NotNil(t, first.Year)
		assert.Equal(t, 2023, *first.Year)
		assert.Equal(t, "10.1038/S41576", first.DOI)
		assert.Equal(t, "12345678", first.PMID)
		assert.Equal(t, 50, first.CitationCount)
		assert.True(t, first.IsOpenAccess)
		assert.Equal(t, "https://example.com/paper.pdf", first.PDFURL)
		assert.Equal(t, domain.SourceTypeSemanticScholar, first.Source)

		second := papers[1]
		assert.Nil(t, second.Year)
		assert.Empty(t, second.Abstract)
		assert.Zero(t, second.CitationCount)
		assert.False(t, second.IsOpenAccess)
		assert.NotNil(t, second.Authors)
	})

	t.Run("sends open-ended year ranges", func(t *testing.T) {
		tests := []struct {
			name     string
			from, to *int
			expected string
		}{
			{"both bounds", domain.IntPtr(2015), domain.IntPtr(2020), "2015-2020"},
			{"from only", domain.IntPtr(2015), nil, "2015-"},
			{"to only", nil, domain.IntPtr(2020), "-2020"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var got string
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					got = r.URL.Query().Get("year")
					_, _ = w.Write([]byte(`{"data": []}`))
				}))
				defer server.Close()

				client := NewClient(Config{BaseURL: server.URL, Enabled: true}, nil)
				_, err := client.Search(context.Background(), papersources.SearchParams{
					Query: "q", YearFrom: tt.from, YearTo: tt.to,
				})
				require.NoError(t, err)
				assert.Equal(t, tt.expected, got)
			})
		}
	})

	t.Run("retries rate limits then gives up", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL, Enabled: true}, fastHTTPClient())
		_, err := client.Search(context.Background(), papersources.SearchParams{Query: "q"})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRateLimited)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("does not retry server errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL, Enabled: true}, fastHTTPClient())
		_, err := client.Search(context.Background(), papersources.SearchParams{Query: "q"})

		var apiErr *domain.ExternalAPIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("malformed payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data": [`))
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL, Enabled: true}, nil)
		_, err := client.Search(context.Background(), papersources.SearchParams{Query: "q"})
		assert.ErrorIs(t, err, domain.ErrMalformedOutput)
	})
}

func TestClient_GetByID(t *testing.T) {
	t.Run("maps pmid identifiers", func(t *testing.T) {
		var path string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			_, _ = w.Write([]byte(`{"paperId": "s2id", "title": "Found", "abstract": "Text"}`))
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL, Enabled: true}, nil)
		paper, err := client.GetByID(context.Background(), "pmid:31415")
		require.NoError(t, err)
		assert.Equal(t, "/paper/PMID:31415", path)
		assert.Equal(t, "s2id", paper.ID)
		assert.Equal(t, "Text", paper.Abstract)
	})

	t.Run("returns not found on 404", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": "Paper not found"}`))
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL, Enabled: true}, nil)
		_, err := client.GetByID(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
