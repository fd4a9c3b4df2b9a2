// Package papersources provides the provider gateway over academic search APIs.
//
// Each academic database (Semantic Scholar, PubMed, OpenAlex) implements the
// PaperSource interface and returns provider-neutral domain.UnifiedPaper
// records. The Gateway fans a set of query variants out across the enabled
// sources and reduces every provider failure to an empty contribution.
//
// Example usage:
//
//	registry := papersources.NewRegistry()
//	registry.Register(semanticscholar.NewClient(cfg, nil))
//	gateway := papersources.NewGateway(registry, papersources.GatewayConfig{}, logger, metrics)
//	result := gateway.FanOut(ctx, []string{"sleep quality", "insomnia RCT"}, nil, nil)
package papersources

import (
	"context"

	"github.com/helixir/paper-search-service/internal/domain"
)

// SearchParams defines the parameters for a single provider search.
type SearchParams struct {
	// Query is the search query string (required).
	Query string

	// Limit caps the number of papers returned. A value of 0 uses the
	// source's default limit.
	Limit int

	// YearFrom filters papers published in or after this year.
	YearFrom *int

	// YearTo filters papers published in or before this year.
	YearTo *int
}

// PaperSource defines the interface that all paper source clients must implement.
type PaperSource interface {
	// Search queries the source for papers matching params. Records without
	// an identifier or title are dropped during parsing.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Return domain.RateLimitError once rate-limit retries are exhausted
	//   - Decode the provider payload into typed structs before conversion
	Search(ctx context.Context, params SearchParams) ([]*domain.UnifiedPaper, error)

	// SourceType returns the type identifier for this paper source.
	SourceType() domain.SourceType

	// Name returns a human-readable name for logging.
	Name() string

	// IsEnabled returns whether this source is configured for use.
	IsEnabled() bool
}

// PaperFetcher is implemented by sources that can look up a single paper.
type PaperFetcher interface {
	// GetByID returns the paper with the given identifier, or a
	// domain.NotFoundError when the source does not know it.
	GetByID(ctx context.Context, id string) (*domain.UnifiedPaper, error)
}
